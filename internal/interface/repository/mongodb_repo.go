package repository

import (
	"context"
	"errors"
	"fmt"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoResultRepository implements ResultRepository. The result id is the
// document _id, so the server rejects a second insert for the same id.
type MongoResultRepository struct {
	collection *mongo.Collection
}

// NewMongoResultRepository creates a new MongoDB result repository
func NewMongoResultRepository(db *mongo.Database) repository.ResultRepository {
	collection := db.Collection("results")

	// Index on createdAt for housekeeping queries
	ctx := context.Background()
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"createdAt": -1},
	})

	return &MongoResultRepository{
		collection: collection,
	}
}

// Put inserts a result; a duplicate id is reported as a conflict
func (r *MongoResultRepository) Put(ctx context.Context, resultID string, result *entity.RecommendationResult) error {
	stored := *result
	stored.ResultID = resultID

	if _, err := r.collection.InsertOne(ctx, &stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("result %s: %w", resultID, entity.ErrConflict)
		}
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// Get finds a result by id
func (r *MongoResultRepository) Get(ctx context.Context, resultID string) (*entity.RecommendationResult, error) {
	var result entity.RecommendationResult
	err := r.collection.FindOne(ctx, bson.M{"_id": resultID}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("result %s: %w", resultID, entity.ErrNotFound)
		}
		return nil, err
	}
	return &result, nil
}

// MongoJobRepository implements JobRepository
type MongoJobRepository struct {
	collection *mongo.Collection
}

// NewMongoJobRepository creates a new MongoDB job repository
func NewMongoJobRepository(db *mongo.Database) repository.JobRepository {
	collection := db.Collection("jobs")

	// Index on status for finding active jobs
	ctx := context.Background()
	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"status": 1}},
		{Keys: bson.M{"createdAt": 1}},
	})

	return &MongoJobRepository{
		collection: collection,
	}
}

// Save upserts a job snapshot
func (r *MongoJobRepository) Save(ctx context.Context, job *entity.Job) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": job.ResponseID}, job, opts)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// List returns every stored job, oldest first
func (r *MongoJobRepository) List(ctx context.Context) ([]*entity.Job, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*entity.Job
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
