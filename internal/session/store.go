// Package session keeps wizard sessions in Redis and hands the client a signed token that
// names its session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crew-onboarding/internal/common/database"
	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the session id. The subject is the submission id once one exists.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type Store struct {
	config *Config
	redis  *database.RedisClient
	logger logger.Logger
	now    func() time.Time
}

func NewStore(cfg *Config, rc *database.RedisClient, log logger.Logger) (*Store, error) {
	if cfg == nil {
		cfg = LoadConfig(nil)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	return &Store{
		config: cfg,
		redis:  rc,
		logger: logger.ForComponent(log, "session"),
		now:    time.Now,
	}, nil
}

// Start creates and saves an empty session and returns it with its token.
func (s *Store) Start(ctx context.Context) (*models.WizardSession, string, error) {
	sess := models.NewWizardSession(uuid.NewString())
	if err := s.Save(ctx, sess); err != nil {
		return nil, "", err
	}
	token, err := s.IssueToken(sess)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// IssueToken signs a token for sess valid for the configured TTL.
func (s *Store) IssueToken(sess *models.WizardSession) (string, error) {
	now := s.now()
	claims := &Claims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   sess.SubmissionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken returns the session id of a valid token. Any invalid, foreign or expired token
// is SESSION_NOT_FOUND.
func (s *Store) ParseToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", apperrors.NewSessionNotFoundError("empty token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "token expired"
		}
		s.logger.Debug("rejected session token", map[string]interface{}{"reason": reason, "error": err})
		return "", apperrors.NewSessionNotFoundError(reason)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", apperrors.NewSessionNotFoundError("invalid token")
	}
	return claims.SessionID, nil
}

// Save mirrors sess to Redis, refreshing its TTL. Banking fields staged in the buffer are
// not written.
func (s *Store) Save(ctx context.Context, sess *models.WizardSession) error {
	if err := s.redis.SetJSON(ctx, s.key(sess.ID), sess.Redacted(), s.config.TTL); err != nil {
		s.logger.Error("failed to save session", map[string]interface{}{"sessionId": sess.ID, "error": err})
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*models.WizardSession, error) {
	var sess models.WizardSession
	err := s.redis.GetJSON(ctx, s.key(id), &sess)
	if errors.Is(err, database.ErrKeyNotFound) {
		return nil, apperrors.NewSessionNotFoundError("session " + id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	if sess.Buffer == nil {
		sess.Buffer = make(map[string]models.StepData)
	}
	return &sess, nil
}

// Resolve parses token and loads its session.
func (s *Store) Resolve(ctx context.Context, token string) (*models.WizardSession, error) {
	id, err := s.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, id)
}

// Delete removes the session. Its token stops resolving.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, s.key(id))
}

func (s *Store) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.config.KeyPrefix, id)
}
