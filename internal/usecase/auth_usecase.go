package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"chatify/internal/entity"
	"chatify/internal/repository"
	"chatify/pkg/jwt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	ErrMissingFields        = entity.NewValidationError("username, email, password and name are required")
	ErrInvalidEmail         = entity.NewValidationError("email is not valid")
	ErrPasswordTooShort     = entity.NewValidationError("password must be at least 6 characters")
	ErrInvalidCredentials   = entity.NewUnauthenticatedError("invalid email or password")
	ErrEmailAlreadyTaken    = entity.NewConflictError("email already taken")
	ErrUsernameAlreadyTaken = entity.NewConflictError("username already taken")
	ErrInvalidRefreshToken  = entity.NewUnauthenticatedError("invalid refresh token")
	ErrExpiredRefreshToken  = entity.NewUnauthenticatedError("refresh token has expired")
	ErrRevokedRefreshToken  = entity.NewUnauthenticatedError("refresh token has been revoked")
)

type AuthUsecase interface {
	Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error)
	Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (entity.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAllDevices(ctx context.Context, userId string) error
	ValidateAccessToken(token string) (*entity.TokenClaims, error)
}

type authUsecase struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	jwtManager       *jwt.Manager
	log              *zap.Logger
}

func NewAuthUsecase(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	jwtManager *jwt.Manager,
	log *zap.Logger,
) AuthUsecase {
	return &authUsecase{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtManager:       jwtManager,
		log:              log,
	}
}

func (u *authUsecase) Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Username == "" || req.Name == "" {
		return entity.AuthResponse{}, ErrMissingFields
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return entity.AuthResponse{}, ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLength {
		return entity.AuthResponse{}, ErrPasswordTooShort
	}

	emailExists, err := u.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	if emailExists {
		return entity.AuthResponse{}, ErrEmailAlreadyTaken
	}

	usernameExists, err := u.userRepo.UsernameExists(ctx, req.Username)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	if usernameExists {
		return entity.AuthResponse{}, ErrUsernameAlreadyTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	language := strings.ToLower(strings.TrimSpace(req.PreferredLanguage))
	if language != "" && !languageCode.MatchString(language) {
		return entity.AuthResponse{}, ErrInvalidLanguage
	}

	user := entity.User{
		Username:          req.Username,
		Email:             req.Email,
		Password:          string(hashedPassword),
		Name:              req.Name,
		PreferredLanguage: language,
	}

	userId, err := u.userRepo.Create(ctx, user)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	user.Id = userId
	user.PreferredLanguage = user.Language()

	u.log.Info("user registered", zap.String("userId", userId))
	return u.issueTokens(ctx, user)
}

func (u *authUsecase) Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error) {
	user, err := u.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return entity.AuthResponse{}, ErrInvalidCredentials
		}
		return entity.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return entity.AuthResponse{}, ErrInvalidCredentials
	}

	return u.issueTokens(ctx, user)
}

// RefreshToken rotates a refresh token: the presented one is revoked and a
// fresh pair is issued.
func (u *authUsecase) RefreshToken(ctx context.Context, refreshTokenString string) (entity.AuthResponse, error) {
	refreshToken, err := u.refreshTokenRepo.GetByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return entity.AuthResponse{}, ErrInvalidRefreshToken
		}
		return entity.AuthResponse{}, err
	}
	if refreshToken.IsRevoked {
		return entity.AuthResponse{}, ErrRevokedRefreshToken
	}
	if !refreshToken.Usable(time.Now()) {
		return entity.AuthResponse{}, ErrExpiredRefreshToken
	}

	user, err := u.userRepo.Get(ctx, refreshToken.UserId)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	if err := u.refreshTokenRepo.Revoke(ctx, refreshTokenString); err != nil {
		return entity.AuthResponse{}, err
	}

	return u.issueTokens(ctx, user)
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken string) error {
	return u.refreshTokenRepo.Revoke(ctx, refreshToken)
}

func (u *authUsecase) LogoutAllDevices(ctx context.Context, userId string) error {
	return u.refreshTokenRepo.RevokeAllByUserId(ctx, userId)
}

func (u *authUsecase) ValidateAccessToken(token string) (*entity.TokenClaims, error) {
	return u.jwtManager.ValidateAccessToken(token)
}

func (u *authUsecase) issueTokens(ctx context.Context, user entity.User) (entity.AuthResponse, error) {
	accessToken, err := u.jwtManager.GenerateAccessToken(user)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	refreshTokenString, err := u.jwtManager.GenerateRefreshToken()
	if err != nil {
		return entity.AuthResponse{}, err
	}

	err = u.refreshTokenRepo.Create(ctx, entity.RefreshToken{
		UserId:    user.Id,
		Token:     refreshTokenString,
		ExpiresAt: u.jwtManager.RefreshTokenExpiration(),
	})
	if err != nil {
		return entity.AuthResponse{}, err
	}

	user.Password = ""
	return entity.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		User:         user,
	}, nil
}
