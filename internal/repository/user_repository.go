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
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrUserNotFound = entity.NewNotFoundError("user not found")

const usersCollection = "users"

type UserRepository interface {
	Get(ctx context.Context, userId string) (entity.User, error)
	GetByEmail(ctx context.Context, email string) (entity.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user entity.User) (string, error)
	Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error)
	UpdatePreferredLanguage(ctx context.Context, userId, language string) (entity.User, error)
	UpdateProfilePic(ctx context.Context, userId, url string) (entity.User, error)
}

type userRepository struct {
	db *mongo.Database
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (entity.User, error) {
	collection := r.db.Collection(usersCollection)

	var user entity.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.User{}, ErrUserNotFound
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (r *userRepository) Get(ctx context.Context, userId string) (entity.User, error) {
	return r.findOne(ctx, bson.M{"_id": userId})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (entity.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	collection := r.db.Collection(usersCollection)

	n, err := collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, bson.M{"email": email})
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, bson.M{"username": username})
}

func (r *userRepository) Create(ctx context.Context, user entity.User) (string, error) {
	collection := r.db.Collection(usersCollection)

	now := time.Now().UTC()
	user.Id = uuid.New().String()
	user.PreferredLanguage = user.Language()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := collection.InsertOne(ctx, user); err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return user.Id, nil
}

func (r *userRepository) Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error) {
	collection := r.db.Collection(usersCollection)

	idFilter := bson.M{}
	if len(filter.Ids) > 0 {
		idFilter["$in"] = filter.Ids
	}
	if len(filter.ExcludeIds) > 0 {
		idFilter["$nin"] = filter.ExcludeIds
	}
	bsonFilter := bson.M{}
	if len(idFilter) > 0 {
		bsonFilter["_id"] = idFilter
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetProjection(bson.M{"password": 0})
	cursor, err := collection.Find(ctx, bsonFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]entity.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (r *userRepository) UpdatePreferredLanguage(ctx context.Context, userId, language string) (entity.User, error) {
	user, err := r.set(ctx, userId, bson.M{"preferredLanguage": language})
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return entity.User{}, fmt.Errorf("update language: %w", err)
	}
	return user, err
}

func (r *userRepository) UpdateProfilePic(ctx context.Context, userId, url string) (entity.User, error) {
	user, err := r.set(ctx, userId, bson.M{"profilePic": url})
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return entity.User{}, fmt.Errorf("update profile pic: %w", err)
	}
	return user, err
}

// set applies fields to one user and returns the updated document.
func (r *userRepository) set(ctx context.Context, userId string, fields bson.M) (entity.User, error) {
	collection := r.db.Collection(usersCollection)

	fields["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user entity.User
	err := collection.FindOneAndUpdate(ctx, bson.M{"_id": userId}, bson.M{"$set": fields}, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.User{}, ErrUserNotFound
	}
	if err != nil {
		return entity.User{}, err
	}
	return user, nil
}
