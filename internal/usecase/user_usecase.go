package usecase

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"chatify/infrastructure/translate"
	"chatify/internal/entity"
	"chatify/internal/repository"

	"go.uber.org/zap"
)

var ErrInvalidLanguage = entity.NewValidationError("preferredLanguage must be a language code such as \"en\" or \"hi\"")

var languageCode = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})?$`)

type UserUsecase interface {
	Get(ctx context.Context, userId string) (entity.User, error)
	ListUsers(ctx context.Context, viewerId string) ([]entity.UserSummary, error)
	UpdateLanguage(ctx context.Context, userId, language string) (entity.User, error)
	UpdateProfilePic(ctx context.Context, userId, dataURL string) (entity.User, error)
}

type userUsecase struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	presence    Presence
	unread      UnreadUsecase
	media       MediaStore
	log         *zap.Logger
}

// media may be nil, which disables profile picture uploads.
func NewUserUseCase(userRepo repository.UserRepository, messageRepo repository.MessageRepository, presence Presence, unread UnreadUsecase, media MediaStore, log *zap.Logger) UserUsecase {
	return &userUsecase{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		presence:    presence,
		unread:      unread,
		media:       media,
		log:         log,
	}
}

func (u *userUsecase) Get(ctx context.Context, userId string) (entity.User, error) {
	return u.userRepo.Get(ctx, userId)
}

// ListUsers returns every other user, most recent conversation first. Users
// the viewer never talked to come last, by name.
func (u *userUsecase) ListUsers(ctx context.Context, viewerId string) ([]entity.UserSummary, error) {
	users, err := u.userRepo.Index(ctx, entity.UserIndexFilter{ExcludeIds: []string{viewerId}})
	if err != nil {
		return nil, err
	}

	lastTimes, err := u.messageRepo.LastMessageTimes(ctx, viewerId)
	if err != nil {
		return nil, err
	}

	counts, err := u.unread.Counts(ctx, viewerId)
	if err != nil {
		u.log.Warn("load unread counts", zap.String("viewerId", viewerId), zap.Error(err))
		counts = map[string]int{}
	}

	summaries := make([]entity.UserSummary, 0, len(users))
	for _, user := range users {
		summary := entity.UserSummary{
			User:        user,
			IsOnline:    u.presence.IsOnline(user.Id),
			UnreadCount: counts[user.Id],
		}
		if last, ok := lastTimes[user.Id]; ok {
			summary.LastMessageAt = &last
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].LastMessageAt, summaries[j].LastMessageAt
		switch {
		case a != nil && b != nil:
			return a.After(*b)
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return summaries[i].Name < summaries[j].Name
		}
	})
	return summaries, nil
}

// UpdateLanguage changes the language future messages are translated into.
// Messages already stored keep the translation they were sent with.
func (u *userUsecase) UpdateLanguage(ctx context.Context, userId, language string) (entity.User, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if !languageCode.MatchString(language) {
		return entity.User{}, ErrInvalidLanguage
	}
	if !translate.SupportedLanguage(language) {
		// still accepted; the translator gets the bare code
		u.log.Warn("language has no prompt name", zap.String("userId", userId), zap.String("language", language))
	}
	return u.userRepo.UpdatePreferredLanguage(ctx, userId, language)
}

func (u *userUsecase) UpdateProfilePic(ctx context.Context, userId, dataURL string) (entity.User, error) {
	if strings.TrimSpace(dataURL) == "" {
		return entity.User{}, entity.NewValidationError("profilePic is required")
	}
	if u.media == nil {
		return entity.User{}, ErrMediaUnavailable
	}

	url, err := u.media.Store(ctx, dataURL)
	if err != nil {
		return entity.User{}, err
	}

	user, err := u.userRepo.UpdateProfilePic(ctx, userId, url)
	if err != nil {
		u.log.Error("profile pic update failed after upload",
			zap.String("imageUrl", url),
			zap.String("userId", userId),
			zap.Error(err))
		return entity.User{}, err
	}
	return user, nil
}
