// Package credentials issues company accounts to new hires: a first.last mailbox on the
// company domain, a matching username and a generated password stored only as a bcrypt hash.
package credentials

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/metrics"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/store"

	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

// Issued holds a freshly issued account. Password is the plaintext and must only be shown
// to the new hire once; it is never persisted.
type Issued struct {
	CompanyEmail string `json:"companyEmail"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	PasswordHash string `json:"-"`
}

type Service struct {
	config *Config
	store  store.Store
	logger logger.Logger
}

func NewService(cfg *Config, st store.Store, log logger.Logger) (*Service, error) {
	if cfg == nil {
		cfg = LoadConfig(nil)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Service{config: cfg, store: st, logger: logger.ForComponent(log, "credentials")}, nil
}

// GeneratePassword returns a random password with the configured digit and symbol counts.
func (s *Service) GeneratePassword() (string, error) {
	return password.Generate(s.config.PasswordLength, s.config.PasswordDigits, s.config.PasswordSymbol, false, false)
}

func (s *Service) HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Issue derives a unique first.last identity for sub and generates its password. The
// caller persists CompanyEmail, Username and PasswordHash.
func (s *Service) Issue(ctx context.Context, sub *models.OnboardingSubmission) (*Issued, error) {
	issued, err := s.issue(ctx, sub)
	if err != nil {
		metrics.CredentialsIssued.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.logger.Error("credential issuance failed", map[string]interface{}{
			"submissionId": sub.ID,
			"error":        err,
		})
		return nil, apperrors.NewCredentialIssuanceFailedError(err)
	}
	metrics.CredentialsIssued.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info("credentials issued", map[string]interface{}{
		"submissionId": sub.ID,
		"username":     issued.Username,
	})
	return issued, nil
}

func (s *Service) issue(ctx context.Context, sub *models.OnboardingSubmission) (*Issued, error) {
	base := BaseUsername(sub.FirstName, sub.LastName)
	username, err := s.uniqueUsername(ctx, base, sub.ID)
	if err != nil {
		return nil, err
	}

	plain, err := s.GeneratePassword()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := s.HashPassword(plain)
	if err != nil {
		return nil, err
	}

	return &Issued{
		CompanyEmail: username + "@" + s.config.CompanyDomain,
		Username:     username,
		Password:     plain,
		PasswordHash: hash,
	}, nil
}

// uniqueUsername returns base, or base2, base3, ... skipping names held by other submissions.
func (s *Service) uniqueUsername(ctx context.Context, base, selfID string) (string, error) {
	rows, err := s.store.Query(ctx, models.TableSubmissions,
		[]store.Filter{{Field: "username", Op: store.OpLike, Value: base + "%"}},
		store.Ordering{},
	)
	if err != nil {
		return "", fmt.Errorf("query existing usernames: %w", err)
	}

	taken := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.String("id") == selfID {
			continue
		}
		taken[r.String("username")] = true
	}

	if !taken[base] {
		return base, nil
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s%d", base, n)
		if !taken[candidate] {
			return candidate, nil
		}
	}
}

// BaseUsername lowercases, strips accents and drops anything that is not a letter or digit
// from each name part, then joins them with a dot.
func BaseUsername(first, last string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{first, last} {
		if clean := slug(p); clean != "" {
			parts = append(parts, clean)
		}
	}
	if len(parts) == 0 {
		return "crew"
	}
	return strings.Join(parts, ".")
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
