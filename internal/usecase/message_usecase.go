package usecase

import (
	"context"
	"strings"

	"chatify/infrastructure/events"
	"chatify/internal/entity"
	"chatify/internal/repository"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage     = entity.NewValidationError("message text or image is required")
	ErrSelfMessage      = entity.NewValidationError("cannot send a message to yourself")
	ErrMediaUnavailable = entity.NewValidationError("image uploads are not enabled")
)

type MessageUsecase interface {
	Send(ctx context.Context, senderId, receiverId string, req entity.SendMessageRequest) (entity.Message, error)
	ListConversation(ctx context.Context, viewerId, peerId string) ([]entity.MessageView, error)
	DeleteMessage(ctx context.Context, messageId, requesterId string, forEveryone bool) (entity.Message, error)
	ClearConversation(ctx context.Context, userId, peerId string) (int64, error)
}

type messageUsecase struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	annotator   TranslationAnnotator
	media       MediaStore
	bus         RealtimePublisher
	unread      UnreadUsecase
	events      EventPublisher
	log         *zap.Logger
}

type MessageUsecaseDeps struct {
	MessageRepo repository.MessageRepository
	UserRepo    repository.UserRepository
	Annotator   TranslationAnnotator
	Media       MediaStore // optional
	Bus         RealtimePublisher
	Unread      UnreadUsecase
	Events      EventPublisher
	Log         *zap.Logger
}

func NewMessageUseCase(deps MessageUsecaseDeps) MessageUsecase {
	u := &messageUsecase{
		messageRepo: deps.MessageRepo,
		userRepo:    deps.UserRepo,
		annotator:   deps.Annotator,
		media:       deps.Media,
		bus:         deps.Bus,
		unread:      deps.Unread,
		events:      deps.Events,
		log:         deps.Log,
	}
	if u.annotator == nil {
		u.annotator = NopAnnotator{}
	}
	if u.events == nil {
		u.events = events.NopPublisher{}
	}
	return u
}

func (u *messageUsecase) Send(ctx context.Context, senderId, receiverId string, req entity.SendMessageRequest) (entity.Message, error) {
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.Image) == "" {
		return entity.Message{}, ErrEmptyMessage
	}
	if senderId == receiverId {
		return entity.Message{}, ErrSelfMessage
	}

	receiver, err := u.userRepo.Get(ctx, receiverId)
	if err != nil {
		return entity.Message{}, err
	}

	message := entity.Message{
		SenderId:         senderId,
		ReceiverId:       receiverId,
		OriginalLanguage: entity.DefaultLanguage,
		Translations:     entity.Translations{},
	}
	if strings.TrimSpace(req.Text) != "" {
		message.Text = req.Text
	}

	if req.Image != "" {
		if u.media == nil {
			return entity.Message{}, ErrMediaUnavailable
		}
		url, err := u.media.Store(ctx, req.Image)
		if err != nil {
			return entity.Message{}, err
		}
		message.ImageUrl = url
	}

	u.annotator.Annotate(ctx, &message, receiver.Language())

	created, err := u.messageRepo.Create(ctx, message)
	if err != nil {
		if message.ImageUrl != "" {
			// TODO: delete the uploaded object once MediaStore grows a Delete.
			u.log.Error("message insert failed after image upload",
				zap.String("imageUrl", message.ImageUrl),
				zap.String("senderId", senderId),
				zap.Error(err))
		}
		return entity.Message{}, err
	}
	message = created

	u.bus.Publish(entity.EventNewMessage, receiverId, message)

	if err := u.unread.OnMessageArrived(ctx, receiverId, senderId); err != nil {
		u.log.Warn("track unread", zap.String("messageId", message.Id), zap.Error(err))
	}

	u.emit(ctx, entity.DomainMessageCreated, message)
	return message, nil
}

// ListConversation returns the thread between viewerId and peerId as the
// viewer sees it, oldest first.
func (u *messageUsecase) ListConversation(ctx context.Context, viewerId, peerId string) ([]entity.MessageView, error) {
	viewer, err := u.userRepo.Get(ctx, viewerId)
	if err != nil {
		return nil, err
	}

	messages, err := u.messageRepo.ListConversation(ctx, viewerId, peerId)
	if err != nil {
		return nil, err
	}

	views := make([]entity.MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, m.ViewFor(viewerId, viewer.Language()))
	}
	return views, nil
}

func (u *messageUsecase) DeleteMessage(ctx context.Context, messageId, requesterId string, forEveryone bool) (entity.Message, error) {
	if !forEveryone {
		message, changed, err := u.messageRepo.SoftDeleteForSelf(ctx, messageId, requesterId)
		if err != nil {
			return entity.Message{}, err
		}
		if !changed {
			return message, nil
		}
		u.emit(ctx, entity.DomainMessageDeleted, entity.MessageDeletedEvent{
			MessageId:   messageId,
			RequesterId: requesterId,
		})
		return message, nil
	}

	message, changed, err := u.messageRepo.SoftDeleteForEveryone(ctx, messageId, requesterId)
	if err != nil {
		return entity.Message{}, err
	}
	if !changed {
		return message, nil
	}

	u.bus.Publish(entity.EventMessageDeleted, message.PeerOf(requesterId), entity.MessageDeletedPayload{
		MessageId:         message.Id,
		DeleteForEveryone: true,
	})
	u.emit(ctx, entity.DomainMessageDeleted, entity.MessageDeletedEvent{
		MessageId:   messageId,
		RequesterId: requesterId,
		ForEveryone: true,
	})
	return message, nil
}

// ClearConversation removes every message between the two users for both of
// them, so both unread counters for the pair drop to zero.
func (u *messageUsecase) ClearConversation(ctx context.Context, userId, peerId string) (int64, error) {
	removed, err := u.messageRepo.DeleteConversation(ctx, userId, peerId)
	if err != nil {
		return 0, err
	}

	for _, pair := range [][2]string{{userId, peerId}, {peerId, userId}} {
		if err := u.unread.Reset(ctx, pair[0], pair[1]); err != nil {
			u.log.Warn("reset unread after clear", zap.String("userId", pair[0]), zap.Error(err))
		}
	}

	u.emit(ctx, entity.DomainConversationCleared, entity.ConversationClearedEvent{
		UserId:  userId,
		PeerId:  peerId,
		Removed: removed,
	})
	return removed, nil
}

func (u *messageUsecase) emit(ctx context.Context, key string, data any) {
	env := events.NewEnvelope(key, middleware.GetReqID(ctx), data)
	if err := u.events.Publish(ctx, key, env); err != nil {
		u.log.Warn("publish domain event", zap.String("key", key), zap.Error(err))
	}
}
