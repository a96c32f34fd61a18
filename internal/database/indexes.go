package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func ensureIndexes(db *mongo.Database, collection string, models []mongo.IndexModel, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("ensure %s indexes: %w", collection, err)
	}
	logger.Info("indexes ensured", zap.String("collection", collection), zap.Strings("indexes", names))
	return nil
}

func EnsureUserIndexes(db *mongo.Database, logger *zap.Logger) error {
	return ensureIndexes(db, CollectionUsers, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
	}, logger)
}

// EnsureOrderIndexes backs the owner listing and the reconciliation lookup, which matches on
// user, external payment reference and payment status together.
func EnsureOrderIndexes(db *mongo.Database, logger *zap.Logger) error {
	return ensureIndexes(db, CollectionOrders, orderIndexModels(), logger)
}

// orderIndexModels includes a unique index on the payment reference: one charge settles one
// order, so a second order carrying the same reference is refused at insert.
func orderIndexModels() []mongo.IndexModel {
	withRef := bson.M{"externalPaymentRef": bson.M{"$exists": true}}
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_createdAt"),
		},
		{
			Keys: bson.D{{Key: "user", Value: 1}, {Key: "externalPaymentRef", Value: 1}, {Key: "paymentStatus", Value: 1}},
			Options: options.Index().
				SetName("payment_correlation").
				SetPartialFilterExpression(withRef),
		},
		{
			Keys: bson.D{{Key: "externalPaymentRef", Value: 1}},
			Options: options.Index().
				SetName("externalPaymentRef_unique").
				SetUnique(true).
				SetPartialFilterExpression(withRef),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status_index"),
		},
	}
}

func EnsureMenuItemIndexes(db *mongo.Database, logger *zap.Logger) error {
	return ensureIndexes(db, CollectionMenuItems, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "available", Value: 1}, {Key: "category", Value: 1}},
			Options: options.Index().SetName("available_category"),
		},
	}, logger)
}

func EnsureContactIndexes(db *mongo.Database, logger *zap.Logger) error {
	return ensureIndexes(db, CollectionContactMessages, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
	}, logger)
}

// EnsureAll runs every index bootstrap and returns the first failure after trying them all.
func EnsureAll(db *mongo.Database, logger *zap.Logger) error {
	var first error
	for _, ensure := range []func(*mongo.Database, *zap.Logger) error{
		EnsureUserIndexes,
		EnsureOrderIndexes,
		EnsureMenuItemIndexes,
		EnsureContactIndexes,
	} {
		if err := ensure(db, logger); err != nil {
			logger.Warn("index bootstrap failed", zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
