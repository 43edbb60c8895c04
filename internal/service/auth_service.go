package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"shopsync/internal/model"
	"shopsync/pkg/apierror"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) error
}

type tokenStore interface {
	Store(ctx context.Context, token string, userID string, expiresAt time.Time) error
	Validate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type AuthService struct {
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      userStore
	tokens     tokenStore
}

func NewAuthService(jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration, users userStore, tokens tokenStore) (*AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 168 * time.Hour
	}

	return &AuthService{
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		users:      users,
		tokens:     tokens,
	}, nil
}

type jwtClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	ShopID   string `json:"shop_id,omitempty"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (model.TokenPair, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return model.TokenPair{}, apierror.New("UNAUTHORIZED", "invalid credentials", "", http.StatusUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.TokenPair{}, apierror.New("UNAUTHORIZED", "invalid credentials", "", http.StatusUnauthorized)
	}

	return s.issueTokenPair(ctx, user)
}

func (s *AuthService) Register(ctx context.Context, username string, password string, role string, shopID string) (model.AuthUser, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	role = strings.ToLower(strings.TrimSpace(role))
	shopID = strings.TrimSpace(shopID)

	if username == "" || password == "" {
		return model.AuthUser{}, apierror.New("BAD_REQUEST", "username and password are required", "", http.StatusBadRequest)
	}
	if role != model.RoleAdmin && role != model.RoleAgent {
		return model.AuthUser{}, apierror.New("BAD_REQUEST", "invalid role", role, http.StatusBadRequest)
	}
	if role == model.RoleAgent && shopID == "" {
		return model.AuthUser{}, apierror.New("BAD_REQUEST", "agents must be attached to a shop", "shop_id", http.StatusBadRequest)
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return model.AuthUser{}, err
	}
	if exists {
		return model.AuthUser{}, apierror.New("ALREADY_EXISTS", "username already exists", username, http.StatusConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return model.AuthUser{}, err
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		ShopID:       shopID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.AuthUser{}, err
	}

	return model.AuthUser{ID: user.ID, Username: user.Username, Role: user.Role, ShopID: user.ShopID}, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	userID, err := s.tokens.Validate(ctx, refreshToken)
	if err != nil {
		return model.TokenPair{}, apierror.New("UNAUTHORIZED", "invalid or expired refresh token", "", http.StatusUnauthorized)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.TokenPair{}, apierror.New("UNAUTHORIZED", "unknown user", "", http.StatusUnauthorized)
	}

	// Rotate: the presented token dies with this exchange.
	_ = s.tokens.Revoke(ctx, refreshToken)

	return s.issueTokenPair(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if strings.TrimSpace(refreshToken) == "" {
		return
	}
	_ = s.tokens.Revoke(ctx, refreshToken)
}

func (s *AuthService) Me(ctx context.Context, userID string) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}
	return model.AuthUser{ID: user.ID, Username: user.Username, Role: user.Role, ShopID: user.ShopID}, nil
}

func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, model.ErrTokenExpired
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || claims.Type != expectedType {
		return nil, model.ErrTokenNotFound
	}

	return &model.AuthClaims{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
		ShopID:   claims.ShopID,
		Type:     claims.Type,
		TokenID:  claims.ID,
	}, nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user model.User) (model.TokenPair, error) {
	now := time.Now().UTC()

	access, err := s.signToken(user, "access", now, s.accessTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh := uuid.NewString()
	if err := s.tokens.Store(ctx, refresh, user.ID, now.Add(s.refreshTTL)); err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         model.AuthUser{ID: user.ID, Username: user.Username, Role: user.Role, ShopID: user.ShopID},
	}, nil
}

func (s *AuthService) signToken(user model.User, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwtClaims{
		Username: user.Username,
		Role:     user.Role,
		ShopID:   user.ShopID,
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}
