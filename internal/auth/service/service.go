package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"chronostamp/internal/auth/models"
	"chronostamp/internal/voucher"
	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/sentinel"
	"chronostamp/pkg/requestcontext"
)

// ChallengeStore holds pending login challenges. Take must remove the
// challenge so it cannot be exchanged twice.
type ChallengeStore interface {
	Save(ctx context.Context, c *models.Challenge) error
	Take(ctx context.Context, id uuid.UUID) (*models.Challenge, error)
}

type TokenGenerator interface {
	GenerateAccessToken(address common.Address, expiresIn time.Duration) (string, time.Time, error)
}

const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultTokenTTL     = time.Hour
)

// Service runs the sign-in-with-address flow: issue a challenge, verify the
// signed challenge, issue an access token.
type Service struct {
	challenges   ChallengeStore
	tokens       TokenGenerator
	logger       *slog.Logger
	challengeTTL time.Duration
	tokenTTL     time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithChallengeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.challengeTTL = ttl
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

func New(challenges ChallengeStore, tokens TokenGenerator, opts ...Option) (*Service, error) {
	if challenges == nil {
		return nil, errors.New("challenge store is required")
	}
	if tokens == nil {
		return nil, errors.New("token generator is required")
	}
	s := &Service{
		challenges:   challenges,
		tokens:       tokens,
		challengeTTL: DefaultChallengeTTL,
		tokenTTL:     DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) IssueChallenge(ctx context.Context, address common.Address) (*models.Challenge, error) {
	if address == (common.Address{}) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "address must not be zero")
	}
	c := models.NewChallenge(address, requestcontext.Now(ctx), s.challengeTTL)
	if err := s.challenges.Save(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save challenge")
	}
	s.logAudit(ctx, "challenge_issued", "address", address.Hex(), "challenge_id", c.ID.String())
	return c, nil
}

// ExchangeToken consumes the challenge and returns an access token when sig
// is the challenge message signed by the challenged address.
func (s *Service) ExchangeToken(ctx context.Context, challengeID uuid.UUID, sig []byte) (*models.Session, error) {
	c, err := s.challenges.Take(ctx, challengeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "challenge not found or expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load challenge")
	}

	signer, err := voucher.RecoverMessageSigner([]byte(c.Message), sig)
	if err != nil || signer != c.Address {
		s.logAudit(ctx, "login_rejected", "address", c.Address.Hex(), "challenge_id", c.ID.String())
		return nil, dErrors.New(dErrors.CodeInvalidSignature, "challenge signature does not match address")
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(c.Address, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	s.logAudit(ctx, "token_issued", "address", c.Address.Hex())
	return &models.Session{AccessToken: token, Address: c.Address, ExpiresAt: expiresAt}, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	args := append(attrs, "event", event, "log_type", "audit", "request_id", requestcontext.RequestID(ctx))
	s.logger.InfoContext(ctx, event, args...)
}
