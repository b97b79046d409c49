package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/logger"
	"cashback_platform/internal/store"
	"cashback_platform/internal/telegram"
)

// ErrUnauthorized is returned for init data that fails verification.
var ErrUnauthorized = errors.New("unauthorized")

// AuthService exchanges Telegram Mini App init data for an API token.
// Unknown Telegram users are signed up as clients.
type AuthService struct {
	users    store.UserRegistry
	botToken string
	maxAge   time.Duration
	tokenTTL time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewAuthService(users store.UserRegistry, botToken string) *AuthService {
	return &AuthService{
		users:    users,
		botToken: botToken,
		maxAge:   time.Hour,
		tokenTTL: 24 * time.Hour,
		now:      time.Now,
		log:      logger.With("component", "auth"),
	}
}

type LoginResult struct {
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
	Created bool         `json:"created"`
}

func (s *AuthService) TelegramLogin(ctx context.Context, initData string) (*LoginResult, error) {
	if s.botToken == "" {
		return nil, ErrUnauthorized
	}
	tgUser, err := telegram.Verify(initData, s.botToken, s.maxAge, s.now())
	if err != nil {
		s.log.Warn("telegram init data rejected", "error", err)
		return nil, ErrUnauthorized
	}

	res := &LoginResult{}
	res.User, err = s.users.FindUserByTgID(ctx, tgUser.ID)
	if errors.Is(err, domain.ErrNotFound) {
		res.User, res.Created, err = s.signUp(ctx, tgUser)
	}
	if err != nil {
		return nil, err
	}

	res.Token, err = GenerateJWT(res.User.ID, roleFor(res.User.Type), s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return res, nil
}

// signUp retries the lookup when a concurrent login created the row first.
func (s *AuthService) signUp(ctx context.Context, tgUser *telegram.WebAppUser) (*domain.User, bool, error) {
	for attempt := 0; attempt < 3; attempt++ {
		u := &domain.User{
			Type:           domain.UserClient,
			Name:           tgUser.DisplayName(),
			TgID:           tgUser.ID,
			InvitationCode: GenerateInvitationCode(),
		}
		err := s.users.CreateUser(ctx, u)
		if err == nil {
			s.log.Info("user signed up", "user_id", u.ID, "tg_id", u.TgID)
			return u, true, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		if existing, err := s.users.FindUserByTgID(ctx, tgUser.ID); err == nil {
			return existing, false, nil
		}
	}
	return nil, false, fmt.Errorf("create user: %w", store.ErrConflict)
}

func roleFor(t domain.UserType) string {
	switch t {
	case domain.UserMerchant:
		return RoleMerchant
	case domain.UserAdmin:
		return RoleAdmin
	}
	return RoleClient
}
