package storage

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"telefeed-sync/internal/feed"
)

const postsCollectionName = "posts"

// MongoPostStore implements feed.PostStore over a MongoDB collection whose
// document key is the composite post id.
type MongoPostStore struct {
	collection *mongo.Collection
}

// NewMongoPostStore creates a post store bound to the posts collection.
func NewMongoPostStore(db *mongo.Database) *MongoPostStore {
	return &MongoPostStore{collection: db.Collection(postsCollectionName)}
}

// LoadExisting reads the whole collection into a composite-id index.
// Malformed documents are logged and skipped; a failed read aborts.
func (s *MongoPostStore) LoadExisting(ctx context.Context) (map[string]feed.Post, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %w", err)
	}
	defer cursor.Close(ctx)

	index := make(map[string]feed.Post)
	for cursor.Next(ctx) {
		var post feed.Post
		if err := cursor.Decode(&post); err != nil {
			log.Printf("WARN: skipping undecodable post document: %v", err)
			continue
		}
		if strings.TrimSpace(post.ID) == "" {
			log.Println("WARN: skipping post document without a usable id")
			continue
		}
		index[post.ID] = post
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return index, nil
}

// UpsertBatch writes all candidates in a single bulk operation of keyed
// upserts.
func (s *MongoPostStore) UpsertBatch(ctx context.Context, posts []feed.Post) error {
	if len(posts) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(posts))
	for _, post := range posts {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": post.ID}).
			SetReplacement(post).
			SetUpsert(true))
	}
	if _, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to bulk upsert posts: %w", err)
	}
	return nil
}

// LoadAllSorted returns the full collection ordered by descending
// composite id, straight from the authoritative store.
func (s *MongoPostStore) LoadAllSorted(ctx context.Context) ([]feed.Post, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %w", err)
	}
	defer cursor.Close(ctx)

	var posts []feed.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}
