package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatify/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrMessageNotFound = entity.NewNotFoundError("message not found")
	ErrNotSender       = entity.NewPermissionError("only the sender can delete a message for everyone")
	ErrEmptyContent    = entity.NewValidationError("message must have text or an image")
)

const messagesCollection = "messages"

type MessageRepository interface {
	Create(ctx context.Context, message entity.Message) (entity.Message, error)
	Get(ctx context.Context, messageId string) (entity.Message, error)
	ListConversation(ctx context.Context, viewerId, peerId string) ([]entity.Message, error)
	// The soft deletes report whether the call changed the document. A repeat
	// or a no-op returns the current message and false.
	SoftDeleteForSelf(ctx context.Context, messageId, viewerId string) (entity.Message, bool, error)
	SoftDeleteForEveryone(ctx context.Context, messageId, requesterId string) (entity.Message, bool, error)
	DeleteConversation(ctx context.Context, userId, peerId string) (int64, error)
	LastMessageTimes(ctx context.Context, viewerId string) (map[string]time.Time, error)
}

type messageRepository struct {
	db    *mongo.Database
	clock *monotonicClock
}

func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		db:    db,
		clock: newMonotonicClock(time.Now),
	}
}

// monotonicClock hands out strictly increasing millisecond timestamps so
// messages created in the same millisecond still order deterministically.
type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}

func conversationFilter(a, b string) bson.M {
	return bson.M{"$or": []bson.M{
		{"senderId": a, "receiverId": b},
		{"senderId": b, "receiverId": a},
	}}
}

func participantFilter(userId string) bson.M {
	return bson.M{"$or": []bson.M{
		{"senderId": userId},
		{"receiverId": userId},
	}}
}

func (r *messageRepository) Create(ctx context.Context, message entity.Message) (entity.Message, error) {
	if message.Text == "" && message.ImageUrl == "" {
		return entity.Message{}, ErrEmptyContent
	}
	collection := r.db.Collection(messagesCollection)

	message.Id = uuid.New().String()
	message.CreatedAt = r.clock.Next()
	message.State = entity.VisibilityActive
	message.DeletedBy = []string{}
	message.Normalize()

	if _, err := collection.InsertOne(ctx, message); err != nil {
		return entity.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

func (r *messageRepository) Get(ctx context.Context, messageId string) (entity.Message, error) {
	collection := r.db.Collection(messagesCollection)

	var message entity.Message
	err := collection.FindOne(ctx, bson.M{"_id": messageId}).Decode(&message)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return entity.Message{}, fmt.Errorf("find message: %w", err)
	}
	message.Normalize()
	return message, nil
}

func (r *messageRepository) ListConversation(ctx context.Context, viewerId, peerId string) ([]entity.Message, error) {
	collection := r.db.Collection(messagesCollection)

	filter := conversationFilter(viewerId, peerId)
	filter["state"] = bson.M{"$ne": entity.VisibilityDeletedForEveryone}
	filter["deletedBy"] = bson.M{"$ne": viewerId}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]entity.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	for i := range messages {
		messages[i].Normalize()
	}
	return messages, nil
}

// SoftDeleteForSelf hides the message from viewerId only. Adding to the set
// is idempotent and commutes with the peer doing the same.
func (r *messageRepository) SoftDeleteForSelf(ctx context.Context, messageId, viewerId string) (entity.Message, bool, error) {
	collection := r.db.Collection(messagesCollection)

	filter := participantFilter(viewerId)
	filter["_id"] = messageId
	filter["state"] = bson.M{"$ne": entity.VisibilityDeletedForEveryone}
	filter["deletedBy"] = bson.M{"$ne": viewerId}
	update := bson.M{"$addToSet": bson.M{"deletedBy": viewerId}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var message entity.Message
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&message)
	if err == nil {
		message.Normalize()
		return message, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return entity.Message{}, false, fmt.Errorf("delete message for self: %w", err)
	}

	// Missing, not ours, already hidden, or already deleted for everyone.
	existing, err := r.Get(ctx, messageId)
	if err != nil {
		return entity.Message{}, false, err
	}
	if !existing.IsParticipant(viewerId) {
		return entity.Message{}, false, ErrMessageNotFound
	}
	return existing, false, nil
}

// SoftDeleteForEveryone moves the message to its terminal state. Only the
// sender may do it; a rejected request leaves the message untouched.
func (r *messageRepository) SoftDeleteForEveryone(ctx context.Context, messageId, requesterId string) (entity.Message, bool, error) {
	collection := r.db.Collection(messagesCollection)

	filter := bson.M{
		"_id":      messageId,
		"senderId": requesterId,
		"state":    bson.M{"$ne": entity.VisibilityDeletedForEveryone},
	}
	update := bson.M{"$set": bson.M{"state": entity.VisibilityDeletedForEveryone}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var message entity.Message
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&message)
	if err == nil {
		message.Normalize()
		return message, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return entity.Message{}, false, fmt.Errorf("delete message for everyone: %w", err)
	}

	existing, err := r.Get(ctx, messageId)
	if err != nil {
		return entity.Message{}, false, err
	}
	if existing.SenderId != requesterId {
		return entity.Message{}, false, ErrNotSender
	}
	return existing, false, nil
}

func (r *messageRepository) DeleteConversation(ctx context.Context, userId, peerId string) (int64, error) {
	collection := r.db.Collection(messagesCollection)

	res, err := collection.DeleteMany(ctx, conversationFilter(userId, peerId))
	if err != nil {
		return 0, fmt.Errorf("delete conversation: %w", err)
	}
	return res.DeletedCount, nil
}

// LastMessageTimes returns, per peer, the creation time of the newest
// message viewerId can still see.
func (r *messageRepository) LastMessageTimes(ctx context.Context, viewerId string) (map[string]time.Time, error) {
	collection := r.db.Collection(messagesCollection)

	match := participantFilter(viewerId)
	match["state"] = bson.M{"$ne": entity.VisibilityDeletedForEveryone}
	match["deletedBy"] = bson.M{"$ne": viewerId}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$senderId", viewerId}},
				"$receiverId",
				"$senderId",
			}},
			"last": bson.M{"$max": "$createdAt"},
		}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate last messages: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		PeerId string    `bson:"_id"`
		Last   time.Time `bson:"last"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode last messages: %w", err)
	}

	out := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		out[row.PeerId] = row.Last
	}
	return out, nil
}
