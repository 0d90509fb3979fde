package usecase

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"chatify/infrastructure/events"
	"chatify/internal/entity"
	"chatify/internal/repository"

	"github.com/stretchr/testify/mock"
)

// memMessageRepo mirrors the Mongo repository's semantics in memory.
type memMessageRepo struct {
	createErr error

	mu       sync.Mutex
	seq      int
	now      time.Time
	messages map[string]entity.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		messages: make(map[string]entity.Message),
	}
}

func (r *memMessageRepo) Create(_ context.Context, m entity.Message) (entity.Message, error) {
	if m.Text == "" && m.ImageUrl == "" {
		return entity.Message{}, repository.ErrEmptyContent
	}
	if r.createErr != nil {
		return entity.Message{}, r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.now = r.now.Add(time.Millisecond)
	m.Id = fmt.Sprintf("m%d", r.seq)
	m.CreatedAt = r.now
	m.State = entity.VisibilityActive
	m.DeletedBy = []string{}
	m.Normalize()
	r.messages[m.Id] = clone(m)
	return m, nil
}

func clone(m entity.Message) entity.Message {
	m.DeletedBy = slices.Clone(m.DeletedBy)
	t := make(entity.Translations, len(m.Translations))
	for k, v := range m.Translations {
		t[k] = v
	}
	m.Translations = t
	return m
}

func (r *memMessageRepo) Get(_ context.Context, id string) (entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return entity.Message{}, repository.ErrMessageNotFound
	}
	return clone(m), nil
}

func inConversation(m entity.Message, a, b string) bool {
	return (m.SenderId == a && m.ReceiverId == b) || (m.SenderId == b && m.ReceiverId == a)
}

func (r *memMessageRepo) ListConversation(_ context.Context, viewerId, peerId string) ([]entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.Message, 0)
	for _, m := range r.messages {
		if inConversation(m, viewerId, peerId) && m.VisibleTo(viewerId) {
			out = append(out, clone(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memMessageRepo) SoftDeleteForSelf(_ context.Context, id, viewerId string) (entity.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || !m.IsParticipant(viewerId) {
		return entity.Message{}, false, repository.ErrMessageNotFound
	}
	if m.IsDeleted() || slices.Contains(m.DeletedBy, viewerId) {
		return clone(m), false, nil
	}
	m.DeletedBy = append(m.DeletedBy, viewerId)
	r.messages[id] = m
	return clone(m), true, nil
}

func (r *memMessageRepo) SoftDeleteForEveryone(_ context.Context, id, requesterId string) (entity.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return entity.Message{}, false, repository.ErrMessageNotFound
	}
	if m.SenderId != requesterId {
		return entity.Message{}, false, repository.ErrNotSender
	}
	if m.IsDeleted() {
		return clone(m), false, nil
	}
	m.State = entity.VisibilityDeletedForEveryone
	r.messages[id] = m
	return clone(m), true, nil
}

func (r *memMessageRepo) DeleteConversation(_ context.Context, userId, peerId string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if inConversation(m, userId, peerId) {
			delete(r.messages, id)
			n++
		}
	}
	return n, nil
}

func (r *memMessageRepo) LastMessageTimes(_ context.Context, viewerId string) (map[string]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time)
	for _, m := range r.messages {
		if !m.IsParticipant(viewerId) || !m.VisibleTo(viewerId) {
			continue
		}
		peer := m.PeerOf(viewerId)
		if m.CreatedAt.After(out[peer]) {
			out[peer] = m.CreatedAt
		}
	}
	return out, nil
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Get(ctx context.Context, userId string) (entity.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (entity.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(entity.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user entity.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockUserRepository) Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePreferredLanguage(ctx context.Context, userId, language string) (entity.User, error) {
	args := m.Called(ctx, userId, language)
	return args.Get(0).(entity.User), args.Error(1)
}

func (m *MockUserRepository) UpdateProfilePic(ctx context.Context, userId, url string) (entity.User, error) {
	args := m.Called(ctx, userId, url)
	return args.Get(0).(entity.User), args.Error(1)
}

type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token entity.RefreshToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockRefreshTokenRepository) GetByToken(ctx context.Context, token string) (entity.RefreshToken, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(entity.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockRefreshTokenRepository) RevokeAllByUserId(ctx context.Context, userId string) error {
	return m.Called(ctx, userId).Error(0)
}

type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	args := m.Called(ctx, text, targetLanguage)
	return args.String(0), args.Error(1)
}

type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) Store(ctx context.Context, dataURL string) (string, error) {
	args := m.Called(ctx, dataURL)
	return args.String(0), args.Error(1)
}

type publishedEvent struct {
	Event   string
	Target  string
	Payload any
}

type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *recordingBus) Publish(event, target string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Event: event, Target: target, Payload: payload})
}

func (b *recordingBus) Broadcast(event string, payload any) {
	b.Publish(event, "", payload)
}

func (b *recordingBus) named(event string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type recordingEvents struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingEvents) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.keys {
		if k == key {
			n++
		}
	}
	return n
}

func (p *recordingEvents) Publish(_ context.Context, key string, msg events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return p.err
}

type staticPresence map[string]bool

func (p staticPresence) IsOnline(userId string) bool { return p[userId] }

func (p staticPresence) OnlineUsers() []string {
	var ids []string
	for id, ok := range p {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids
}
