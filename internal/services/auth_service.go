package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/pi"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

const (
	identityCacheSize = 4096
	identityCacheTTL  = 5 * time.Minute

	maxCreateAttempts      = 3
	usernameSuffixAttempts = 5
)

// PiIdentity verifies Pi user access tokens.
type PiIdentity interface {
	Me(ctx context.Context, accessToken string) (*pi.UserInfo, error)
}

type cachedIdentity struct {
	info    *pi.UserInfo
	expires time.Time
}

type AuthService struct {
	store  store.Store
	cfg    *config.Config
	pi     PiIdentity
	admins map[string]bool
	cache  *lru.Cache
	group  singleflight.Group
	now    func() time.Time
}

func NewAuthService(st store.Store, cfg *config.Config, identity PiIdentity) *AuthService {
	cache, _ := lru.New(identityCacheSize)
	admins := make(map[string]bool)
	for _, uid := range cfg.AdminPiUIDList() {
		admins[uid] = true
	}
	return &AuthService{
		store:  st,
		cfg:    cfg,
		pi:     identity,
		admins: admins,
		cache:  cache,
		now:    time.Now,
	}
}

// Login verifies a Pi access token and signs the player in, creating the
// account with the welcome bonus on first sight.
func (s *AuthService) Login(ctx context.Context, req *dto.PiLoginRequest) (*dto.AuthResponse, error) {
	info, err := s.verify(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	user, isNew, err := s.findOrCreate(ctx, info)
	if err != nil {
		return nil, err
	}

	resp, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	resp.IsNewUser = isNew

	slog.Info("pi login", "user_id", user.ID.String(), "new_user", isNew)
	return resp, nil
}

func (s *AuthService) verify(ctx context.Context, accessToken string) (*pi.UserInfo, error) {
	key := hashToken(accessToken)
	if v, ok := s.cache.Get(key); ok {
		entry := v.(cachedIdentity)
		if s.now().Before(entry.expires) {
			return entry.info, nil
		}
		s.cache.Remove(key)
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		info, err := s.pi.Me(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, cachedIdentity{info: info, expires: s.now().Add(identityCacheTTL)})
		return info, nil
	})
	if err != nil {
		var upErr *pi.UpstreamError
		if errors.As(err, &upErr) && (upErr.StatusCode == http.StatusUnauthorized || upErr.StatusCode == http.StatusForbidden) {
			return nil, ErrAuthentication
		}
		slog.Error("pi token verification failed", "action", "login", "error", err.Error())
		return nil, upstream("me", err)
	}

	info := v.(*pi.UserInfo)
	if info.UID == "" {
		return nil, ErrAuthentication
	}
	return info, nil
}

func (s *AuthService) findOrCreate(ctx context.Context, info *pi.UserInfo) (*models.User, bool, error) {
	for attempt := 1; ; attempt++ {
		user, isNew, err := s.tryFindOrCreate(ctx, info)
		if !errors.Is(err, store.ErrDuplicate) {
			return user, isNew, err
		}
		// Either a concurrent first login for the same uid won the insert,
		// or another player took the chosen username in the meantime.
		existing, gerr := s.store.GetUserByPiUID(ctx, info.UID)
		if gerr == nil {
			return existing, false, nil
		}
		if !errors.Is(gerr, store.ErrNotFound) {
			return nil, false, gerr
		}
		if attempt == maxCreateAttempts {
			return nil, false, err
		}
	}
}

func (s *AuthService) tryFindOrCreate(ctx context.Context, info *pi.UserInfo) (*models.User, bool, error) {
	now := s.now()
	var user *models.User
	isNew := false

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		existing, err := tx.GetUserByPiUID(ctx, info.UID)
		if err == nil {
			existing.LastActive = now
			if s.admins[info.UID] {
				existing.Role = models.RoleAdmin
			}
			user = existing
			return tx.SaveUser(ctx, existing)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		username, err := freeUsername(ctx, tx, info)
		if err != nil {
			return err
		}

		user = models.NewUser(info.UID, username, s.cfg.WelcomeBonus, now)
		if s.admins[info.UID] {
			user.Role = models.RoleAdmin
		}
		isNew = true
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, false, err
	}
	return user, isNew, nil
}

// freeUsername prefers the Pi username, then Player_<uid tail>, then that
// name with a random suffix.
func freeUsername(ctx context.Context, r store.Reader, info *pi.UserInfo) (string, error) {
	fallback := fallbackUsername(info.UID)
	candidates := make([]string, 0, 2+usernameSuffixAttempts)
	if info.Username != "" {
		candidates = append(candidates, info.Username)
	}
	candidates = append(candidates, fallback)
	for i := 0; i < usernameSuffixAttempts; i++ {
		suffix := make([]byte, 3)
		if _, err := rand.Read(suffix); err != nil {
			return "", fmt.Errorf("failed to generate username suffix: %w", err)
		}
		candidates = append(candidates, fmt.Sprintf("%s_%x", fallback, suffix))
	}

	for _, name := range candidates {
		_, err := r.GetUserByUsername(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no free username for %s", store.ErrDuplicate, info.UID)
}

func fallbackUsername(uid string) string {
	suffix := uid
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "Player_" + suffix
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	tokenHash := hashToken(req.RefreshToken)

	stored, err := s.store.GetRefreshToken(ctx, tokenHash)
	if err != nil || stored.Revoked {
		return nil, ErrInvalidToken
	}
	if err := s.store.RevokeRefreshToken(ctx, tokenHash); err != nil {
		return nil, err
	}
	if s.now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	user, err := getUser(ctx, s.store, stored.UserID)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	return s.store.RevokeRefreshToken(ctx, hashToken(req.RefreshToken))
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		Success:      true,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.JWTAccessExpiry.Seconds()),
		User:         dto.NewUserResponse(user, s.now()),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)
	record := models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.store.CreateRefreshToken(ctx, &record); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
