package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

var (
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrInactiveAPIKey = errors.New("API key is inactive")
	ErrDatabaseError  = errors.New("database error")
	ErrAPIKeyNotFound = errors.New("API key not found")
)

// ConnectMongo opens and pings a MongoDB client for the API key store
func ConnectMongo(ctx context.Context, cfg *config.MongoDBConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	clientOptions.SetMinPoolSize(cfg.MaxPoolSize / 4)
	clientOptions.SetMaxConnIdleTime(30 * time.Minute)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
	clientOptions.SetServerSelectionTimeout(5 * time.Second)
	clientOptions.SetReadPreference(readpref.SecondaryPreferred())
	clientOptions.SetRetryWrites(true)
	clientOptions.SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// AuthService handles API key authentication using MongoDB
type AuthService struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewAuthService creates an authentication service over an open client
func NewAuthService(client *mongo.Client, cfg *config.MongoDBConfig, log *logger.Logger) *AuthService {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthService{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.APIKeyCollection),
		logger:     log,
	}
}

// EnsureIndexes creates the indexes API key lookups rely on
func (a *AuthService) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "active", Value: 1}}},
		{Keys: bson.D{{Key: "key", Value: 1}, {Key: "active", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create API key indexes: %w", err)
	}
	return nil
}

// ValidateAPIKey validates an API key against the MongoDB database
func (a *AuthService) ValidateAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	if key == "" {
		return nil, ErrInvalidAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var apiKey models.APIKey
	err := a.collection.FindOne(ctx, bson.M{"key": key}).Decode(&apiKey)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if !apiKey.Active {
		return nil, ErrInactiveAPIKey
	}

	go a.updateLastUsed(apiKey.ID)

	return &apiKey, nil
}

// updateLastUsed updates the last_used timestamp for an API key
func (a *AuthService) updateLastUsed(id interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"last_used": time.Now().UTC()}}
	if _, err := a.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		a.logger.Warn("Failed to update API key last_used", zap.Error(err))
	}
}

// CreateAPIKey stores a new active key with a random 32 byte hex secret
func (a *AuthService) CreateAPIKey(ctx context.Context, name string) (*models.APIKey, error) {
	secret, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	apiKey := &models.APIKey{
		ID:        primitive.NewObjectID(),
		Key:       secret,
		Name:      name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := a.collection.InsertOne(ctx, apiKey); err != nil {
		return nil, fmt.Errorf("%w: insert API key: %v", ErrDatabaseError, err)
	}
	a.logger.Info("Created API key", zap.String("api_key_id", apiKey.ID.Hex()), zap.String("name", name))
	return apiKey, nil
}

// ListAPIKeys returns every stored key, newest first
func (a *AuthService) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	cursor, err := a.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: list API keys: %v", ErrDatabaseError, err)
	}
	defer cursor.Close(ctx)

	var keys []models.APIKey
	if err := cursor.All(ctx, &keys); err != nil {
		return nil, fmt.Errorf("%w: decode API keys: %v", ErrDatabaseError, err)
	}
	return keys, nil
}

// DeactivateAPIKey marks key inactive so later requests are rejected
func (a *AuthService) DeactivateAPIKey(ctx context.Context, key string) error {
	res, err := a.collection.UpdateOne(ctx, bson.M{"key": key}, bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return fmt.Errorf("%w: deactivate API key: %v", ErrDatabaseError, err)
	}
	if res.MatchedCount == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// Close closes the MongoDB connection
func (a *AuthService) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// GenerateAPIKey returns a cryptographically secure random API key
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
