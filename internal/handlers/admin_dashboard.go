package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"eatery/internal/database"
	"eatery/internal/models"
)

// weekdays is indexed by Mongo $dayOfWeek minus one (1 = Sunday).
var weekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

const inactiveAfter = 6 * 30 * 24 * time.Hour

type dashboardStats struct {
	TotalOrders   int64   `json:"totalOrders"`
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalUsers    int64   `json:"totalUsers"`
	PendingOrders int64   `json:"pendingOrders"`
}

type dayBucket struct {
	Day   int     `bson:"_id"`
	Value float64 `bson:"value"`
}

type topSellingItem struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	Name    string             `bson:"name" json:"name"`
	Image   string             `bson:"image" json:"image"`
	Sales   int64              `bson:"sales" json:"sales"`
	Revenue float64            `bson:"revenue" json:"revenue"`
}

type userOrderStats struct {
	UserID    primitive.ObjectID `bson:"_id"`
	Orders    int64              `bson:"orders"`
	LastOrder time.Time          `bson:"lastOrder"`
}

type adminUser struct {
	models.User
	Orders       int64     `json:"orders"`
	LastActivity time.Time `json:"lastActivity"`
	Status       string    `json:"status"`
}

/* =========================
   STATS
========================= */

func GetDashboardStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/dashboard/stats"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		ordersColl := db.Collection(database.CollectionOrders)
		var stats dashboardStats

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := ordersColl.CountDocuments(gctx, bson.M{})
			stats.TotalOrders = n
			return err
		})
		g.Go(func() error {
			n, err := db.Collection(database.CollectionUsers).CountDocuments(gctx, bson.M{})
			stats.TotalUsers = n
			return err
		})
		g.Go(func() error {
			n, err := ordersColl.CountDocuments(gctx, bson.M{"status": models.OrderStatusPending})
			stats.PendingOrders = n
			return err
		})
		g.Go(func() error {
			cursor, err := ordersColl.Aggregate(gctx, mongo.Pipeline{
				{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: "total", Value: bson.D{{Key: "$sum", Value: "$totalAmount"}}},
				}}},
			})
			if err != nil {
				return err
			}
			var rows []struct {
				Total float64 `bson:"total"`
			}
			if err := cursor.All(gctx, &rows); err != nil {
				return err
			}
			if len(rows) > 0 {
				stats.TotalRevenue = rows[0].Total
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			respondInternal(c, route, err, "Error fetching admin stats")
			return
		}
		respondData(c, http.StatusOK, stats)
	}
}

/* =========================
   WEEKLY CHARTS
========================= */

func GetOrdersByDay(db *mongo.Database) gin.HandlerFunc {
	return weeklyChart(db, "GET /api/admin/dashboard/orders-by-day", "orders", 1)
}

func GetRevenueByDay(db *mongo.Database) gin.HandlerFunc {
	return weeklyChart(db, "GET /api/admin/dashboard/revenue-by-day", "revenue", "$totalAmount")
}

func weeklyChart(db *mongo.Database, route, field string, sum interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.CollectionOrders).Aggregate(ctx, weekdayPipeline(sum))
		if err != nil {
			respondInternal(c, route, err, "Error fetching chart data")
			return
		}
		var buckets []dayBucket
		if err := cursor.All(ctx, &buckets); err != nil {
			respondInternal(c, route, err, "Error fetching chart data")
			return
		}
		respondData(c, http.StatusOK, fillWeekdays(buckets, field))
	}
}

func weekdayPipeline(sum interface{}) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dayOfWeek", Value: bson.D{
				{Key: "date", Value: "$createdAt"},
				{Key: "timezone", Value: "UTC"},
			}}}},
			{Key: "value", Value: bson.D{{Key: "$sum", Value: sum}}},
		}}},
	}
}

// fillWeekdays returns one row per day from Sunday to Saturday, zero where no orders exist.
func fillWeekdays(buckets []dayBucket, field string) []gin.H {
	var values [7]float64
	for _, b := range buckets {
		if b.Day >= 1 && b.Day <= 7 {
			values[b.Day-1] += b.Value
		}
	}
	out := make([]gin.H, 0, len(weekdays))
	for i, day := range weekdays {
		out = append(out, gin.H{"date": day, field: values[i]})
	}
	return out
}

/* =========================
   TOP SELLING
========================= */

func GetTopSelling(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/dashboard/top-selling"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.CollectionOrders).Aggregate(ctx, topSellingPipeline(5))
		if err != nil {
			respondInternal(c, route, err, "Error fetching top selling items")
			return
		}
		items := []topSellingItem{}
		if err := cursor.All(ctx, &items); err != nil {
			respondInternal(c, route, err, "Error fetching top selling items")
			return
		}
		respondData(c, http.StatusOK, items)
	}
}

// topSellingPipeline ranks menu items by units sold. Revenue uses the unit price captured on
// each order, and the name falls back to that snapshot when the item was removed from the menu.
func topSellingPipeline(limit int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$items.menuItem"},
			{Key: "snapshotName", Value: bson.D{{Key: "$last", Value: "$items.name"}}},
			{Key: "sales", Value: bson.D{{Key: "$sum", Value: "$items.quantity"}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$multiply", Value: bson.A{"$items.price", "$items.quantity"}},
			}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "sales", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: database.CollectionMenuItems},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "menuItem"},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "sales", Value: 1},
			{Key: "revenue", Value: 1},
			{Key: "name", Value: bson.D{{Key: "$ifNull", Value: bson.A{
				bson.D{{Key: "$first", Value: "$menuItem.name"}}, "$snapshotName",
			}}}},
			{Key: "image", Value: bson.D{{Key: "$ifNull", Value: bson.A{
				bson.D{{Key: "$first", Value: "$menuItem.image"}}, "",
			}}}},
		}}},
	}
}

/* =========================
   USERS
========================= */

func GetAdminUsers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/users"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.CollectionUsers).Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, route, err, "Error fetching users")
			return
		}
		var users []models.User
		if err := cursor.All(ctx, &users); err != nil {
			respondInternal(c, route, err, "Error fetching users")
			return
		}

		statsCursor, err := db.Collection(database.CollectionOrders).Aggregate(ctx, mongo.Pipeline{
			{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$user"},
				{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
				{Key: "lastOrder", Value: bson.D{{Key: "$max", Value: "$createdAt"}}},
			}}},
		})
		if err != nil {
			respondInternal(c, route, err, "Error fetching users")
			return
		}
		var rows []userOrderStats
		if err := statsCursor.All(ctx, &rows); err != nil {
			respondInternal(c, route, err, "Error fetching users")
			return
		}
		byUser := make(map[primitive.ObjectID]userOrderStats, len(rows))
		for _, row := range rows {
			byUser[row.UserID] = row
		}

		now := time.Now().UTC()
		out := make([]adminUser, 0, len(users))
		for _, u := range users {
			out = append(out, enrichUser(u, byUser[u.ID], now))
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    out,
			"message": "Users retrieved successfully",
		})
	}
}

func enrichUser(u models.User, stats userOrderStats, now time.Time) adminUser {
	last := u.UpdatedAt
	if stats.Orders > 0 && !stats.LastOrder.IsZero() {
		last = stats.LastOrder
	}
	return adminUser{
		User:         u,
		Orders:       stats.Orders,
		LastActivity: last,
		Status:       userActivityStatus(stats.Orders, u.CreatedAt, now),
	}
}

// userActivityStatus marks accounts older than six months that never ordered as inactive.
func userActivityStatus(orders int64, createdAt, now time.Time) string {
	if orders == 0 && now.Sub(createdAt) > inactiveAfter {
		return "inactive"
	}
	return "active"
}
