package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ppn-portal/src/domain"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLeaderInactive     = errors.New("leader account is inactive")
)

// LoginResponse is returned after a successful login
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Leader      domain.Leader `json:"leader"`
}

// AuthService 認証サービスのインターフェース
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Authenticate(ctx context.Context, tokenString string) (*domain.Leader, error)
}

type authService struct {
	leaders    domain.LeaderRepository
	jwtService JWTService
	logger     *logrus.Logger
}

// NewAuthService 認証サービスを作成
func NewAuthService(leaders domain.LeaderRepository, jwtService JWTService, logger *logrus.Logger) AuthService {
	return &authService{
		leaders:    leaders,
		jwtService: jwtService,
		logger:     logger,
	}
}

// HashPassword bcryptでパスワードをハッシュ化
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Login メールアドレスとパスワードでログイン
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	leader, err := s.leaders.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrLeaderNotFound) {
			// ユーザーの存在を漏らさない
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(leader.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("leader_id", leader.ID).Warn("パスワードが一致しません")
		return nil, ErrInvalidCredentials
	}
	if !leader.IsActive {
		return nil, ErrLeaderInactive
	}

	token, expiresAt, err := s.jwtService.GenerateAccessToken(leader.ID, leader.Email)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("leader_id", leader.ID).Info("リーダーがログインしました")
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Leader:      *leader,
	}, nil
}

// Authenticate トークンを検証して有効なリーダーを返す
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*domain.Leader, error) {
	claims, err := s.jwtService.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	leader, err := s.leaders.GetByID(ctx, claims.LeaderID)
	if err != nil {
		if errors.Is(err, domain.ErrLeaderNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !leader.IsActive {
		return nil, ErrLeaderInactive
	}
	return leader, nil
}
