package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"eatery/internal/database"
	"eatery/internal/logging"
	"eatery/internal/models"
)

const contactStatusNew = "new"

var contactPolicy = bluemonday.StrictPolicy()

type contactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type contactStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// sanitizeText strips markup so stored messages are safe to render in the admin panel.
func sanitizeText(value string) string {
	return strings.TrimSpace(contactPolicy.Sanitize(value))
}

func (r contactRequest) toMessage(now time.Time) (models.ContactMessage, bool) {
	msg := models.ContactMessage{
		Name:      sanitizeText(r.Name),
		Email:     strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:     sanitizeText(r.Phone),
		Subject:   sanitizeText(r.Subject),
		Message:   sanitizeText(r.Message),
		Status:    contactStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ok := msg.Name != "" && msg.Subject != "" && msg.Message != ""
	return msg, ok
}

func SubmitContact(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/contact"

		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "Please provide all required fields")
			return
		}
		msg, ok := req.toMessage(time.Now().UTC())
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "Please provide all required fields")
			return
		}
		if identity, ok := identityFrom(c); ok {
			if oid, err := primitive.ObjectIDFromHex(identity.UserID); err == nil {
				msg.UserID = &oid
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if _, err := db.Collection(database.CollectionContactMessages).InsertOne(ctx, msg); err != nil {
			respondInternal(c, route, err, "There was a problem submitting your message. Please try again later.")
			return
		}

		logging.From(c).Info("contact message received", zap.Bool("authenticated", msg.UserID != nil))
		respondMessage(c, http.StatusCreated, "Your message has been sent successfully. We will get back to you soon.")
	}
}

func GetContactMessages(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/contact"

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			if !models.IsContactStatus(status) {
				respondWithError(c, http.StatusBadRequest, route, "Invalid status")
				return
			}
			filter["status"] = status
		}

		cursor, err := db.Collection(database.CollectionContactMessages).Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondInternal(c, route, err, "Failed to fetch contact messages")
			return
		}
		messages := []models.ContactMessage{}
		if err := cursor.All(ctx, &messages); err != nil {
			respondInternal(c, route, err, "Failed to fetch contact messages")
			return
		}
		respondData(c, http.StatusOK, messages)
	}
}

func GetContactMessage(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/contact/:id"

		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "Message not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var msg models.ContactMessage
		err = db.Collection(database.CollectionContactMessages).FindOne(ctx, bson.M{"_id": oid}).Decode(&msg)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Message not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Failed to fetch contact message")
			return
		}
		respondData(c, http.StatusOK, msg)
	}
}

func UpdateContactStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/contact/:id/status"

		var req contactStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil || !models.IsContactStatus(req.Status) {
			respondWithError(c, http.StatusBadRequest, route, "Invalid status")
			return
		}
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "Message not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var msg models.ContactMessage
		err = db.Collection(database.CollectionContactMessages).FindOneAndUpdate(ctx,
			bson.M{"_id": oid},
			bson.M{"$set": bson.M{"status": req.Status, "updatedAt": time.Now().UTC()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&msg)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Message not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err, "Failed to update message status")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    msg,
			"message": "Message status updated successfully",
		})
	}
}

func DeleteContactMessage(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/contact/:id"

		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "Message not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.CollectionContactMessages).DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			respondInternal(c, route, err, "Failed to delete contact message")
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Message not found")
			return
		}
		respondMessage(c, http.StatusOK, "Contact message deleted successfully")
	}
}
