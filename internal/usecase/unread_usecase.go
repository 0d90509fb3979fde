package usecase

import (
	"context"
	"fmt"

	"chatify/internal/entity"

	"go.uber.org/zap"
)

// UnreadStore persists per-viewer unread counters and the conversation a
// viewer currently has open.
type UnreadStore interface {
	Increment(ctx context.Context, viewerId, peerId string) (int, error)
	Reset(ctx context.Context, viewerId, peerId string) error
	Counts(ctx context.Context, viewerId string) (map[string]int, error)
	SetViewing(ctx context.Context, viewerId, peerId string) error
	ClearViewing(ctx context.Context, viewerId string) error
	TouchViewing(ctx context.Context, viewerId string) error
	Viewing(ctx context.Context, viewerId string) (string, error)
}

type UnreadUsecase interface {
	OnMessageArrived(ctx context.Context, viewerId, senderId string) error
	OnConversationOpened(ctx context.Context, viewerId, peerId string) error
	OnConversationClosed(ctx context.Context, viewerId string) error
	OnConversationLeft(ctx context.Context, viewerId, peerId string) error
	KeepViewing(ctx context.Context, viewerId string) error
	Reset(ctx context.Context, viewerId, peerId string) error
	Counts(ctx context.Context, viewerId string) (map[string]int, error)
	Aggregate(ctx context.Context, viewerId string) (int, error)
	Summary(ctx context.Context, viewerId string) (entity.UnreadSummary, error)
}

type unreadUsecase struct {
	store UnreadStore
	bus   RealtimePublisher
	log   *zap.Logger
}

func NewUnreadUsecase(store UnreadStore, bus RealtimePublisher, log *zap.Logger) UnreadUsecase {
	return &unreadUsecase{
		store: store,
		bus:   bus,
		log:   log,
	}
}

// OnMessageArrived bumps the viewer's counter for senderId unless that
// conversation is open right now.
func (u *unreadUsecase) OnMessageArrived(ctx context.Context, viewerId, senderId string) error {
	viewing, err := u.store.Viewing(ctx, viewerId)
	if err != nil {
		return fmt.Errorf("read viewing state: %w", err)
	}
	if viewing == senderId {
		return nil
	}

	count, err := u.store.Increment(ctx, viewerId, senderId)
	if err != nil {
		return err
	}
	u.notify(ctx, viewerId, senderId, count)
	return nil
}

func (u *unreadUsecase) OnConversationOpened(ctx context.Context, viewerId, peerId string) error {
	if err := u.store.SetViewing(ctx, viewerId, peerId); err != nil {
		return fmt.Errorf("set viewing state: %w", err)
	}
	return u.Reset(ctx, viewerId, peerId)
}

func (u *unreadUsecase) OnConversationClosed(ctx context.Context, viewerId string) error {
	if err := u.store.ClearViewing(ctx, viewerId); err != nil {
		return fmt.Errorf("clear viewing state: %w", err)
	}
	return nil
}

// OnConversationLeft closes peerId's conversation only if it is still the
// one the viewer has open.
func (u *unreadUsecase) OnConversationLeft(ctx context.Context, viewerId, peerId string) error {
	viewing, err := u.store.Viewing(ctx, viewerId)
	if err != nil {
		return fmt.Errorf("read viewing state: %w", err)
	}
	if viewing != peerId {
		return nil
	}
	return u.OnConversationClosed(ctx, viewerId)
}

// KeepViewing extends the open conversation while the viewer is active.
func (u *unreadUsecase) KeepViewing(ctx context.Context, viewerId string) error {
	if err := u.store.TouchViewing(ctx, viewerId); err != nil {
		return fmt.Errorf("touch viewing state: %w", err)
	}
	return nil
}

func (u *unreadUsecase) Reset(ctx context.Context, viewerId, peerId string) error {
	if err := u.store.Reset(ctx, viewerId, peerId); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	u.notify(ctx, viewerId, peerId, 0)
	return nil
}

func (u *unreadUsecase) Counts(ctx context.Context, viewerId string) (map[string]int, error) {
	return u.store.Counts(ctx, viewerId)
}

func (u *unreadUsecase) Aggregate(ctx context.Context, viewerId string) (int, error) {
	counts, err := u.store.Counts(ctx, viewerId)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (u *unreadUsecase) Summary(ctx context.Context, viewerId string) (entity.UnreadSummary, error) {
	counts, err := u.store.Counts(ctx, viewerId)
	if err != nil {
		return entity.UnreadSummary{}, err
	}
	summary := entity.UnreadSummary{Counts: counts}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}

func (u *unreadUsecase) notify(ctx context.Context, viewerId, peerId string, count int) {
	total, err := u.Aggregate(ctx, viewerId)
	if err != nil {
		u.log.Warn("aggregate unread", zap.String("viewerId", viewerId), zap.Error(err))
		return
	}
	u.bus.Publish(entity.EventUnreadUpdated, viewerId, entity.UnreadUpdatedPayload{
		PeerId: peerId,
		Count:  count,
		Total:  total,
	})
}
