package http

import (
	"context"

	"chatify/internal/entity"

	"github.com/stretchr/testify/mock"
)

type MockAuthUsecase struct {
	mock.Mock
}

func (m *MockAuthUsecase) Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(entity.AuthResponse), args.Error(1)
}

func (m *MockAuthUsecase) Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(entity.AuthResponse), args.Error(1)
}

func (m *MockAuthUsecase) RefreshToken(ctx context.Context, refreshToken string) (entity.AuthResponse, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(entity.AuthResponse), args.Error(1)
}

func (m *MockAuthUsecase) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *MockAuthUsecase) LogoutAllDevices(ctx context.Context, userId string) error {
	return m.Called(ctx, userId).Error(0)
}

func (m *MockAuthUsecase) ValidateAccessToken(token string) (*entity.TokenClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*entity.TokenClaims)
	return claims, args.Error(1)
}

type MockMessageUsecase struct {
	mock.Mock
}

func (m *MockMessageUsecase) Send(ctx context.Context, senderId, receiverId string, req entity.SendMessageRequest) (entity.Message, error) {
	args := m.Called(ctx, senderId, receiverId, req)
	return args.Get(0).(entity.Message), args.Error(1)
}

func (m *MockMessageUsecase) ListConversation(ctx context.Context, viewerId, peerId string) ([]entity.MessageView, error) {
	args := m.Called(ctx, viewerId, peerId)
	return args.Get(0).([]entity.MessageView), args.Error(1)
}

func (m *MockMessageUsecase) DeleteMessage(ctx context.Context, messageId, requesterId string, forEveryone bool) (entity.Message, error) {
	args := m.Called(ctx, messageId, requesterId, forEveryone)
	return args.Get(0).(entity.Message), args.Error(1)
}

func (m *MockMessageUsecase) ClearConversation(ctx context.Context, userId, peerId string) (int64, error) {
	args := m.Called(ctx, userId, peerId)
	return args.Get(0).(int64), args.Error(1)
}

type MockUserUsecase struct {
	mock.Mock
}

func (m *MockUserUsecase) Get(ctx context.Context, userId string) (entity.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(entity.User), args.Error(1)
}

func (m *MockUserUsecase) ListUsers(ctx context.Context, viewerId string) ([]entity.UserSummary, error) {
	args := m.Called(ctx, viewerId)
	return args.Get(0).([]entity.UserSummary), args.Error(1)
}

func (m *MockUserUsecase) UpdateLanguage(ctx context.Context, userId, language string) (entity.User, error) {
	args := m.Called(ctx, userId, language)
	return args.Get(0).(entity.User), args.Error(1)
}

func (m *MockUserUsecase) UpdateProfilePic(ctx context.Context, userId, dataURL string) (entity.User, error) {
	args := m.Called(ctx, userId, dataURL)
	return args.Get(0).(entity.User), args.Error(1)
}

type MockUnreadUsecase struct {
	mock.Mock
}

func (m *MockUnreadUsecase) OnMessageArrived(ctx context.Context, viewerId, senderId string) error {
	return m.Called(ctx, viewerId, senderId).Error(0)
}

func (m *MockUnreadUsecase) OnConversationOpened(ctx context.Context, viewerId, peerId string) error {
	return m.Called(ctx, viewerId, peerId).Error(0)
}

func (m *MockUnreadUsecase) OnConversationClosed(ctx context.Context, viewerId string) error {
	return m.Called(ctx, viewerId).Error(0)
}

func (m *MockUnreadUsecase) OnConversationLeft(ctx context.Context, viewerId, peerId string) error {
	return m.Called(ctx, viewerId, peerId).Error(0)
}

func (m *MockUnreadUsecase) KeepViewing(ctx context.Context, viewerId string) error {
	return m.Called(ctx, viewerId).Error(0)
}

func (m *MockUnreadUsecase) Reset(ctx context.Context, viewerId, peerId string) error {
	return m.Called(ctx, viewerId, peerId).Error(0)
}

func (m *MockUnreadUsecase) Counts(ctx context.Context, viewerId string) (map[string]int, error) {
	args := m.Called(ctx, viewerId)
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockUnreadUsecase) Aggregate(ctx context.Context, viewerId string) (int, error) {
	args := m.Called(ctx, viewerId)
	return args.Int(0), args.Error(1)
}

func (m *MockUnreadUsecase) Summary(ctx context.Context, viewerId string) (entity.UnreadSummary, error) {
	args := m.Called(ctx, viewerId)
	return args.Get(0).(entity.UnreadSummary), args.Error(1)
}
