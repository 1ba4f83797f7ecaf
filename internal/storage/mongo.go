package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/shelfcrawl/internal/config"
	"github.com/IshaanNene/shelfcrawl/internal/types"
)

// runIDKey carries the run ID through the context so documents from one run
// can be grouped.
type runIDKey struct{}

// WithRunID attaches a run ID for sinks that record it.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// MongoSink writes one document per record to a MongoDB collection.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	database   string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewMongoSink connects and pings the server.
func NewMongoSink(ctx context.Context, cfg config.SinkConfig, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection),
		database:   cfg.MongoDatabase,
		timeout:    timeout,
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Write(ctx context.Context, records []types.Record) (types.Location, error) {
	loc := types.Location(fmt.Sprintf("mongodb://%s/%s", s.database, s.collection.Name()))
	if len(records) == 0 {
		// InsertMany rejects an empty batch.
		return loc, nil
	}

	docs := recordDocuments(runIDFrom(ctx), time.Now().UTC(), records)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return "", &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb insert: %w", err)}
	}

	s.logger.Info("records stored in mongodb", "location", loc, "records", len(records))
	return loc, nil
}

// Close disconnects the client.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// recordDocuments keeps record order in a position field since MongoDB does
// not guarantee natural order.
func recordDocuments(runID string, at time.Time, records []types.Record) []any {
	docs := make([]any, len(records))
	for i, rec := range records {
		docs[i] = bson.D{
			{Key: "title", Value: rec.Title},
			{Key: "price", Value: rec.Price},
			{Key: "position", Value: i},
			{Key: "run_id", Value: runID},
			{Key: "stored_at", Value: at},
		}
	}
	return docs
}
