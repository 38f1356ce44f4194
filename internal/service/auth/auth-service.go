package auth

import (
	"ChatRelay/entity"
	"ChatRelay/internal/lib/sl"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// KeyStore holds API keys issued to agents.
type KeyStore interface {
	CheckApiKey(ctx context.Context, key string) (string, error)
	GenerateApiKey(ctx context.Context, username string) (string, error)
}

// Claims of an agent token. The subject is the agent username.
type Claims struct {
	jwt.RegisteredClaims
}

// Service authenticates agents by the shared key, an issued API key or a
// signed JWT.
type Service struct {
	masterKey string
	jwtSecret []byte
	keys      KeyStore
	now       func() time.Time
	log       *slog.Logger
}

func NewAuthService(logger *slog.Logger, masterKey, jwtSecret string) *Service {
	return &Service{
		masterKey: masterKey,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
		log:       logger.With(sl.Module("auth-service")),
	}
}

func (s *Service) SetKeyStore(keys KeyStore) {
	s.keys = keys
}

// ValidateToken returns the agent username the token belongs to.
func (s *Service) ValidateToken(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	if s.masterKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.masterKey)) == 1 {
		return entity.MasterAgent, nil
	}
	if len(s.jwtSecret) > 0 {
		if agent, err := s.parseJWT(token); err == nil {
			return agent, nil
		}
	}
	if s.keys != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		agent, err := s.keys.CheckApiKey(ctx, token)
		if err == nil && agent != "" {
			return agent, nil
		}
		if err != nil {
			s.log.With(sl.Secret("token", token)).Debug("api key lookup", sl.Err(err))
		}
	}
	return "", ErrInvalidToken
}

func (s *Service) AuthenticateByToken(token string) (*entity.AgentAuth, error) {
	agent, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &entity.AgentAuth{Username: agent, Token: token}, nil
}

func (s *Service) parseJWT(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// IssueToken signs a JWT for agent, valid for ttl.
func (s *Service) IssueToken(agent string, ttl time.Duration) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", fmt.Errorf("jwt secret not configured")
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agent,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// GenerateApiKey issues a long-lived key for agent.
func (s *Service) GenerateApiKey(ctx context.Context, agent string) (string, error) {
	if s.keys == nil {
		return "", fmt.Errorf("key store not configured")
	}
	key, err := s.keys.GenerateApiKey(ctx, agent)
	if err != nil {
		return "", err
	}
	s.log.With(slog.String("agent", agent)).Info("api key issued")
	return key, nil
}
