// Command seed loads the starter menu into an empty menu_items collection.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"eatery/internal/config"
	"eatery/internal/database"
	"eatery/internal/logging"
	"eatery/internal/models"
)

//go:embed menu.yaml
var menuFixture []byte

type seedNutrition struct {
	Calories  float64  `yaml:"calories"`
	Protein   float64  `yaml:"protein"`
	Carbs     float64  `yaml:"carbs"`
	Fat       float64  `yaml:"fat"`
	Allergens []string `yaml:"allergens"`
}

type seedItem struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	Price           float64        `yaml:"price"`
	Image           string         `yaml:"image"`
	Category        string         `yaml:"category"`
	Vegetarian      bool           `yaml:"vegetarian"`
	SpicyLevel      int            `yaml:"spicyLevel"`
	Popular         bool           `yaml:"popular"`
	PreparationTime int            `yaml:"preparationTime"`
	Ingredients     []string       `yaml:"ingredients"`
	NutritionalInfo *seedNutrition `yaml:"nutritionalInfo"`
	Unavailable     bool           `yaml:"unavailable"`
}

func loadMenu(data []byte, now time.Time) ([]models.MenuItem, error) {
	var raw []seedItem
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse menu fixture: %w", err)
	}

	items := make([]models.MenuItem, 0, len(raw))
	for i, r := range raw {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("menu fixture item %d: name is required", i)
		}
		if r.Price <= 0 {
			return nil, fmt.Errorf("menu fixture item %q: price must be positive", r.Name)
		}
		if !models.IsMenuCategory(r.Category) {
			return nil, fmt.Errorf("menu fixture item %q: unknown category %q", r.Name, r.Category)
		}
		spicy := r.SpicyLevel
		if spicy == 0 {
			spicy = 1
		}

		item := models.MenuItem{
			Name:            r.Name,
			Description:     r.Description,
			Price:           r.Price,
			Image:           r.Image,
			Category:        r.Category,
			Vegetarian:      r.Vegetarian,
			SpicyLevel:      spicy,
			Popular:         r.Popular,
			Ingredients:     models.StringList(r.Ingredients),
			Available:       !r.Unavailable,
			PreparationTime: r.PreparationTime,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if n := r.NutritionalInfo; n != nil {
			item.NutritionalInfo = &models.NutritionalInfo{
				Calories:  n.Calories,
				Protein:   n.Protein,
				Carbs:     n.Carbs,
				Fat:       n.Fat,
				Allergens: models.StringList(n.Allergens),
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		logger.Fatal("mongo connect failed", zap.Error(err))
	}
	defer func() {
		if err := database.Disconnect(client); err != nil {
			logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coll := client.Database(cfg.DBName).Collection(database.CollectionMenuItems)
	count, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		logger.Fatal("count menu items failed", zap.Error(err))
	}
	if count > 0 {
		logger.Info("menu already seeded, nothing to do", zap.Int64("count", count))
		return
	}

	items, err := loadMenu(menuFixture, time.Now().UTC())
	if err != nil {
		logger.Fatal("invalid menu fixture", zap.Error(err))
	}
	docs := make([]interface{}, 0, len(items))
	for _, item := range items {
		docs = append(docs, item)
	}
	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		logger.Fatal("insert menu items failed", zap.Error(err))
	}
	logger.Info("menu seeded", zap.Int("inserted", len(res.InsertedIDs)))
}
