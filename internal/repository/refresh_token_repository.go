package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatify/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrRefreshTokenNotFound = entity.NewNotFoundError("refresh token not found")

const refreshTokensCollection = "refresh_tokens"

type RefreshTokenRepository interface {
	Create(ctx context.Context, refreshToken entity.RefreshToken) error
	GetByToken(ctx context.Context, token string) (entity.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllByUserId(ctx context.Context, userId string) error
}

type refreshTokenRepository struct {
	db *mongo.Database
}

func NewRefreshTokenRepository(db *mongo.Database) RefreshTokenRepository {
	return &refreshTokenRepository{
		db: db,
	}
}

func (r *refreshTokenRepository) Create(ctx context.Context, refreshToken entity.RefreshToken) error {
	collection := r.db.Collection(refreshTokensCollection)

	refreshToken.Id = uuid.New().String()
	refreshToken.CreatedAt = time.Now().UTC()
	refreshToken.IsRevoked = false

	if _, err := collection.InsertOne(ctx, refreshToken); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) GetByToken(ctx context.Context, token string) (entity.RefreshToken, error) {
	collection := r.db.Collection(refreshTokensCollection)

	var refreshToken entity.RefreshToken
	err := collection.FindOne(ctx, bson.M{"token": token}).Decode(&refreshToken)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.RefreshToken{}, ErrRefreshTokenNotFound
	}
	if err != nil {
		return entity.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return refreshToken, nil
}

func revokeUpdate() bson.M {
	return bson.M{"$set": bson.M{
		"isRevoked": true,
		"revokedAt": time.Now().UTC(),
	}}
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	collection := r.db.Collection(refreshTokensCollection)

	if _, err := collection.UpdateOne(ctx, bson.M{"token": token}, revokeUpdate()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) RevokeAllByUserId(ctx context.Context, userId string) error {
	collection := r.db.Collection(refreshTokensCollection)

	filter := bson.M{"userId": userId, "isRevoked": false}
	if _, err := collection.UpdateMany(ctx, filter, revokeUpdate()); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}
