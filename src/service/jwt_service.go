package service

import (
	"errors"
	"fmt"
	"time"

	"ppn-portal/src/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleLeader = "leader"
	issuer     = "ppn-portal"
)

var ErrInvalidToken = errors.New("invalid token")

// JWTClaims JWT内のカスタムクレーム
type JWTClaims struct {
	LeaderID int    `json:"leader_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService JWT管理サービスのインターフェース
type JWTService interface {
	GenerateAccessToken(leaderID int, email string) (string, time.Time, error)
	ValidateToken(tokenString string) (*JWTClaims, error)
}

type jwtService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewJWTService JWT管理サービスを作成
func NewJWTService(cfg *config.Config) JWTService {
	return &jwtService{
		secret:    []byte(cfg.Auth.JWTSecret),
		expiresIn: cfg.Auth.JWTExpiresIn,
		now:       time.Now,
	}
}

// GenerateAccessToken リーダー用のアクセストークンを生成
func (s *jwtService) GenerateAccessToken(leaderID int, email string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiresIn)

	claims := &JWTClaims{
		LeaderID: leaderID,
		Email:    email,
		Role:     RoleLeader,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   fmt.Sprintf("leader:%d", leaderID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken アクセストークンを検証
func (s *jwtService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Role != RoleLeader {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
