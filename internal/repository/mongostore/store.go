// Package mongostore implements the order and user stores on MongoDB.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"eshop_back_end/internal/repository"
)

const (
	ordersCollection     = "orders"
	orderItemsCollection = "orderitems"
	usersCollection      = "users"
)

// EnsureIndexes creates the indexes the stores rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	orderIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "idempotencyKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "user", Value: 1}, {Key: "dateOrdered", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "dateOrdered", Value: -1}},
		},
	}
	if _, err := db.Collection(ordersCollection).Indexes().CreateMany(ctx, orderIdx); err != nil {
		return fmt.Errorf("mongostore: create order indexes: %w", err)
	}

	userIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, userIdx); err != nil {
		return fmt.Errorf("mongostore: create user indexes: %w", err)
	}

	if log != nil {
		log.Info("mongo indexes ensured", zap.String("database", db.Name()))
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repository.ErrInvalidID
	}
	return oid, nil
}

func parseIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := parseID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
