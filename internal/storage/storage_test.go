package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func str(s string) *string { return &s }

var sampleRecords = []types.Record{
	{Title: str("A Light in the Attic"), Price: str("£51.77")},
	{Title: str("Soumission"), Price: nil},
	{Title: nil, Price: str("£47.82")},
	{Title: str(`Quotes "<&>"`), Price: str("£0.00")},
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := EncodeRecords(sampleRecords)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeRecords(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(sampleRecords, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeFieldOrderAndNulls(t *testing.T) {
	data, err := EncodeRecords([]types.Record{{Title: str("T"), Price: nil}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	compact := strings.Join(strings.Fields(string(data)), "")
	if compact != `[{"title":"T","price":null}]` {
		t.Errorf("unexpected encoding %s", compact)
	}
}

func TestEncodeNilIsEmptyArray(t *testing.T) {
	data, err := EncodeRecords(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected [], got %s", data)
	}
}

func TestFileSinkWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "books.json")
	sink := NewFileSink(path, testLogger)

	loc, err := sink.Write(context.Background(), sampleRecords)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(string(loc), "file://") || !strings.HasSuffix(string(loc), "/nested/books.json") {
		t.Errorf("unexpected location %q", loc)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	got, err := DecodeRecords(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(sampleRecords) {
		t.Errorf("expected %d records, got %d", len(sampleRecords), len(got))
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %v", entries)
	}
}

func TestFileSinkWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	sink := NewFileSink(filepath.Join(blocker, "books.json"), testLogger)
	_, err := sink.Write(context.Background(), sampleRecords)

	var storageErr *types.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *types.StorageError, got %T (%v)", err, err)
	}
	if storageErr.Backend != "file" {
		t.Errorf("expected file backend, got %q", storageErr.Backend)
	}
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3SinkWrite(t *testing.T) {
	fake := &fakeS3{}
	sink := newS3Sink(fake, "my-bucket", "crawls/books.json", testLogger)

	loc, err := sink.Write(context.Background(), sampleRecords)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if loc != "s3://my-bucket/crawls/books.json" {
		t.Errorf("unexpected location %q", loc)
	}
	if *fake.in.Bucket != "my-bucket" || *fake.in.Key != "crawls/books.json" {
		t.Errorf("unexpected target %s/%s", *fake.in.Bucket, *fake.in.Key)
	}
	if *fake.in.ContentType != "application/json" {
		t.Errorf("unexpected content type %q", *fake.in.ContentType)
	}

	got, err := DecodeRecords(fake.body)
	if err != nil {
		t.Fatalf("decode uploaded body: %v", err)
	}
	if diff := cmp.Diff(sampleRecords, got); diff != "" {
		t.Errorf("uploaded records mismatch (-want +got):\n%s", diff)
	}
}

func TestS3SinkAccessDenied(t *testing.T) {
	denied := errors.New("AccessDenied: not authorized to perform s3:PutObject")
	sink := newS3Sink(&fakeS3{err: denied}, "my-bucket", "books.json", testLogger)

	_, err := sink.Write(context.Background(), sampleRecords)

	var storageErr *types.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *types.StorageError, got %T (%v)", err, err)
	}
	if !errors.Is(err, denied) {
		t.Error("underlying error should be preserved")
	}
	if types.Stage(err) != types.StagePersist {
		t.Errorf("expected persist stage, got %q", types.Stage(err))
	}
}

func TestRecordDocumentsKeepOrder(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	docs := recordDocuments("run-42", at, sampleRecords[:2])

	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	second := docs[1].(bson.D).Map()
	if second["position"] != 1 {
		t.Errorf("expected position 1, got %v", second["position"])
	}
	if second["run_id"] != "run-42" {
		t.Errorf("expected run id, got %v", second["run_id"])
	}
	if second["price"].(*string) != nil {
		t.Errorf("expected nil price, got %v", second["price"])
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := WithRunID(context.Background(), "abc")
	if got := runIDFrom(ctx); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
	if got := runIDFrom(context.Background()); got != "" {
		t.Errorf("expected empty run id, got %q", got)
	}
}

func TestNewUnknownSink(t *testing.T) {
	_, err := New(context.Background(), config.SinkConfig{Type: "ftp"}, testLogger)
	if !errors.Is(err, types.ErrUnknownSink) {
		t.Errorf("expected ErrUnknownSink, got %v", err)
	}
}
