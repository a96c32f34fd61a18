package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eatery/internal/database"
	"eatery/internal/models"
)

type MongoStore struct {
	client database.Sessioner
	coll   *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		client: db.Client(),
		coll:   db.Collection(database.CollectionOrders),
	}
}

func (s *MongoStore) WithinTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return database.RunTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

func (s *MongoStore) Insert(ctx context.Context, order *models.Order) error {
	res, err := s.coll.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return ValidationError{Field: "paymentIntentId", Message: "is already attached to another order"}
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

// orderPipeline selects orders newest first and joins in the customer's name and email.
func orderPipeline(match bson.M, limit int64) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	return append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": database.CollectionUsers,
			"let":  bson.M{"userId": "$user"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$userId"}}}},
				bson.M{"$project": bson.M{"name": 1, "email": 1}},
			},
			"as": "customer",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$customer", "preserveNullAndEmptyArrays": true}}},
	)
}

func (s *MongoStore) aggregate(ctx context.Context, match bson.M, limit int64) ([]models.Order, error) {
	cursor, err := s.coll.Aggregate(ctx, orderPipeline(match, limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	found, err := s.aggregate(ctx, bson.M{"_id": id}, 1)
	if err != nil {
		return models.Order{}, fmt.Errorf("find order: %w", err)
	}
	if len(found) == 0 {
		return models.Order{}, ErrOrderNotFound
	}
	return found[0], nil
}

func (s *MongoStore) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	query := bson.M{}
	if filter.UserID != nil {
		query["user"] = *filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	orders, err := s.aggregate(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus returns the order re-read with its customer. When that read fails the change
// has still been applied, so the bare updated document is returned.
func (s *MongoStore) UpdateStatus(ctx context.Context, change StatusChange) (models.Order, bool, error) {
	filter := bson.M{"_id": change.OrderID, "status": change.From}
	update := bson.M{"$set": bson.M{"status": change.To, "updatedAt": change.At}}
	order, ok, err := s.findOneAndUpdate(ctx, filter, update)
	if err != nil || !ok {
		return order, ok, err
	}
	if populated, err := s.FindByID(ctx, order.ID); err == nil {
		return populated, true, nil
	}
	return order, true, nil
}

// SettlePayment matches and sets in one FindOneAndUpdate, so of two racing events for the
// same order only one observes a match.
func (s *MongoStore) SettlePayment(ctx context.Context, match PaymentMatch) (models.Order, bool, error) {
	if strings.TrimSpace(match.ExternalPaymentRef) == "" || match.UserID.IsZero() || len(match.From) == 0 {
		return models.Order{}, false, nil
	}
	filter := paymentFilter(match)
	update := bson.M{"$set": bson.M{"paymentStatus": match.To, "updatedAt": match.At}}
	return s.findOneAndUpdate(ctx, filter, update)
}

func paymentFilter(match PaymentMatch) bson.M {
	filter := bson.M{
		"user":               match.UserID,
		"externalPaymentRef": match.ExternalPaymentRef,
		"paymentStatus":      bson.M{"$in": match.From},
	}
	if match.Amount > 0 {
		filter["totalAmount"] = amountRange(match.Amount)
	}
	return filter
}

// amountRange matches a stored two-place total against a cent amount. Totals are doubles,
// so the match is the half-open cent window around the amount instead of float equality.
func amountRange(cents int64) bson.M {
	centre := decimal.New(cents, -2)
	half := decimal.New(5, -3)
	return bson.M{
		"$gte": centre.Sub(half).InexactFloat64(),
		"$lt":  centre.Add(half).InexactFloat64(),
	}
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (models.Order, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, false, nil
	}
	if err != nil {
		return models.Order{}, false, fmt.Errorf("update order: %w", err)
	}
	return order, true, nil
}
