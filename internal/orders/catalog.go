package orders

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eatery/internal/database"
	"eatery/internal/models"
)

// Catalog resolves item ids to their current authoritative records.
type Catalog interface {
	Lookup(ctx context.Context, ids []string) (CatalogSnapshot, error)
}

// CatalogSnapshot holds every record found for a lookup, available or not, and the ids
// that matched nothing.
type CatalogSnapshot struct {
	Items   map[string]models.MenuItem
	Missing []string
}

// Resolve returns the record for id, reporting not found and unavailable distinctly.
func (s CatalogSnapshot) Resolve(id string) (models.MenuItem, error) {
	item, ok := s.Items[id]
	if !ok {
		return models.MenuItem{}, ItemNotFoundError{ItemID: id}
	}
	if !item.Available {
		return models.MenuItem{}, ItemNotFoundError{ItemID: id, Unavailable: true}
	}
	return item, nil
}

// NewSnapshot indexes items by hex id and records the requested ids that were not returned.
func NewSnapshot(requested []string, items []models.MenuItem) CatalogSnapshot {
	snap := CatalogSnapshot{Items: make(map[string]models.MenuItem, len(items))}
	for _, item := range items {
		snap.Items[item.ID.Hex()] = item
	}
	for _, id := range requested {
		if _, ok := snap.Items[id]; !ok {
			snap.Missing = append(snap.Missing, id)
		}
	}
	return snap
}

type MongoCatalog struct {
	coll *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{coll: db.Collection(database.CollectionMenuItems)}
}

// Lookup issues one $in query. Ids that are not valid ObjectIDs cannot exist and are
// reported as missing. Pass a session context to read inside a transaction.
func (c *MongoCatalog) Lookup(ctx context.Context, ids []string) (CatalogSnapshot, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIDs = append(objectIDs, oid)
		}
	}
	if len(objectIDs) == 0 {
		return NewSnapshot(ids, nil), nil
	}

	opts := options.Find().SetProjection(bson.M{
		"name": 1, "price": 1, "available": 1, "category": 1, "preparationTime": 1,
	})
	cursor, err := c.coll.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}, opts)
	if err != nil {
		return CatalogSnapshot{}, fmt.Errorf("catalog lookup: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.MenuItem
	if err := cursor.All(ctx, &items); err != nil {
		return CatalogSnapshot{}, fmt.Errorf("catalog decode: %w", err)
	}
	return NewSnapshot(ids, items), nil
}
