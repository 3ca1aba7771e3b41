package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

const (
	refreshTokenTTL = 30 * 24 * time.Hour
	accessTokenTTL  = 15 * time.Minute
)

// パスワードのハッシュ化はbcrypt実装を外から差し込む
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hashed string, plain string) error
}

type AccessTokenIssuer interface {
	Issue(userID int64, role model.Role, ttl time.Duration) (string, error)
}

type IDGenerator interface {
	NewID() string
}

type Clock interface {
	Now() time.Time
}

// 乱数由来のリフレッシュトークン平文を作る
type RefreshTokenSource interface {
	NewToken() (string, error)
}

type AuthUsecase struct {
	users    repo.UserRepository
	tokens   repo.RefreshTokenRepository
	hasher   PasswordHasher
	issuer   AccessTokenIssuer
	idGen    IDGenerator
	tokenSrc RefreshTokenSource
	clock    Clock
}

func NewAuthUsecase(
	users repo.UserRepository,
	tokens repo.RefreshTokenRepository,
	hasher PasswordHasher,
	issuer AccessTokenIssuer,
	idGen IDGenerator,
	tokenSrc RefreshTokenSource,
	clock Clock,
) *AuthUsecase {
	return &AuthUsecase{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		issuer:   issuer,
		idGen:    idGen,
		tokenSrc: tokenSrc,
		clock:    clock,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
}

type AuthTokensOutput struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
}

func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (int64, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if username == "" {
		return 0, NewHTTPError(http.StatusBadRequest, "username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return 0, NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	if len(in.Password) < 8 {
		return 0, NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}

	if _, err := u.users.FindByEmail(ctx, email); err == nil {
		return 0, NewHTTPError(http.StatusConflict, "email already registered")
	} else if !errors.Is(err, repo.ErrUserNotFound) && !errors.Is(err, repo.ErrNotFound) {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "hash error")
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := u.users.Create(ctx, user); err != nil {
		//事前チェックをすり抜けた同時登録
		if errors.Is(err, repo.ErrDuplicate) {
			return 0, NewHTTPError(http.StatusConflict, "email already registered")
		}
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return user.ID, nil
}

func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (AuthTokensOutput, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return AuthTokensOutput{}, NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repo.ErrUserNotFound) || errors.Is(err, repo.ErrNotFound) {
		//存在有無を悟らせない
		return AuthTokensOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if err := u.hasher.Verify(user.PasswordHash, in.Password); err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if !user.IsActive {
		return AuthTokensOutput{}, NewHTTPError(http.StatusForbidden, "account is blocked")
	}

	now := u.clock.Now()
	user.LastLoginAt = &now
	if err := u.users.Update(ctx, user); err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.issueTokens(ctx, user, in.UserAgent)
}

// リフレッシュトークンのローテーション。
// 使用済みトークンの再提示は盗難とみなして全セッションを破棄する
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string, userAgent string) (AuthTokensOutput, error) {
	if refreshToken == "" {
		return AuthTokensOutput{}, NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	stored, err := u.tokens.FindByHash(ctx, hashToken(refreshToken))
	if errors.Is(err, repo.ErrRefreshTokenNotFound) || errors.Is(err, repo.ErrNotFound) {
		return AuthTokensOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	now := u.clock.Now()
	if stored.RevokedAt != nil || now.After(stored.ExpiresAt) {
		return AuthTokensOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	if stored.UsedAt != nil {
		_ = u.tokens.RevokeAllByUserID(ctx, stored.UserID)
		return AuthTokensOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	user, err := u.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	if !user.IsActive {
		return AuthTokensOutput{}, NewHTTPError(http.StatusForbidden, "account is blocked")
	}

	if err := u.tokens.MarkUsed(ctx, stored.ID); err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return u.issueTokens(ctx, user, userAgent)
}

func (u *AuthUsecase) Logout(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.tokens.RevokeAllByUserID(ctx, userID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *AuthUsecase) issueTokens(ctx context.Context, user *model.User, userAgent string) (AuthTokensOutput, error) {
	access, err := u.issuer.Issue(user.ID, user.Role, accessTokenTTL)
	if err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	plain, err := u.tokenSrc.NewToken()
	if err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	rt := &model.RefreshToken{
		ID:        u.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: hashToken(plain),
		UserAgent: userAgent,
		ExpiresAt: u.clock.Now().Add(refreshTokenTTL),
	}
	if err := u.tokens.Create(ctx, rt); err != nil {
		return AuthTokensOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return AuthTokensOutput{
		AccessToken:  access,
		RefreshToken: plain,
		UserID:       user.ID,
		Role:         string(user.Role),
	}, nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
