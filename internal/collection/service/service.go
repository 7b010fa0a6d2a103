package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chronostamp/internal/collection/metrics"
	"chronostamp/internal/collection/models"
	"chronostamp/internal/events"
	"chronostamp/internal/ownership"
	"chronostamp/internal/voucher"
	"chronostamp/pkg/domain"
	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/sentinel"
	txcontext "chronostamp/pkg/platform/tx"
	"chronostamp/pkg/requestcontext"
)

// Store persists collections. RecordClaim must consume the nonce and mint in
// one atomic step and return sentinel.ErrAlreadyUsed on replay.
type Store interface {
	Create(ctx context.Context, c *models.Collection) error
	FindByAddress(ctx context.Context, addr common.Address) (*models.Collection, error)
	CountByDeployer(ctx context.Context, deployer common.Address) (uint64, error)
	UpdateOwner(ctx context.Context, addr, previous, next common.Address) error
	RecordClaim(ctx context.Context, addr common.Address, nonce domain.Nonce, holder common.Address, at time.Time) (uint64, error)
	IsNonceUsed(ctx context.Context, addr common.Address, nonce domain.Nonce) (bool, error)
	OwnerOf(ctx context.Context, addr common.Address, tokenID uint64) (common.Address, error)
	BalanceOf(ctx context.Context, addr, holder common.Address) (uint64, error)
}

type EventEmitter interface {
	Emit(ctx context.Context, e events.Event) error
}

// Service is the ClaimAuthority: it verifies vouchers, consumes nonces and
// mints badges for every collection in the store.
type Service struct {
	store   Store
	tx      txcontext.Runner
	events  EventEmitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEvents(emitter EventEmitter) Option {
	return func(s *Service) {
		s.events = emitter
	}
}

func New(store Store, tx txcontext.Runner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("collection store is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{
		store:  store,
		tx:     tx,
		events: events.Discard{},
		tracer: otel.Tracer("chronostamp/internal/collection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Deploy constructs and persists a new collection owned by cfg.Owner. The
// address is derived from the deployer and the number of collections it has
// deployed before.
func (s *Service) Deploy(ctx context.Context, deployer common.Address, cfg models.Config) (*models.Collection, error) {
	ctx, span := s.tracer.Start(ctx, "collection.Deploy",
		trace.WithAttributes(attribute.String("deployer", deployer.Hex())))
	defer span.End()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var deployed *models.Collection
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, deployer.Hex()), func(ctx context.Context) error {
		count, err := s.store.CountByDeployer(ctx, deployer)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count deployed collections")
		}
		c, err := models.NewCollection(crypto.CreateAddress(deployer, count), deployer, cfg, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.store.Create(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "collection address already taken")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create collection")
		}
		if err := s.events.Emit(ctx, events.OwnershipTransferred(c.Address, common.Address{}, c.Owner())); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit ownership event")
		}
		deployed = c
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	s.logAudit(ctx, "collection_deployed",
		"collection", deployed.Address.Hex(),
		"deployer", deployer.Hex(),
		"owner", deployed.Owner().Hex(),
		"trusted_signer", deployed.TrustedSigner.Hex(),
	)
	if s.metrics != nil {
		s.metrics.IncrementDeployed()
	}
	return deployed, nil
}

// Claim mints the next badge of collection to caller when sig is the trusted
// signer's signature over (caller, nonce) and nonce has not been used.
func (s *Service) Claim(ctx context.Context, collection, caller common.Address, sig []byte, nonce domain.Nonce) (*models.Claim, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "collection.Claim", trace.WithAttributes(
		attribute.String("collection", collection.Hex()),
		attribute.String("caller", caller.Hex()),
	))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveClaim(start)
	}

	claim, err := s.claim(ctx, collection, caller, sig, nonce)
	if err != nil {
		recordSpanError(span, err)
		if s.metrics != nil {
			s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "claim rejected",
				"collection", collection.Hex(),
				"caller", caller.Hex(),
				"nonce", nonce.Hex(),
				"reason", dErrors.CodeOf(err),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int64("token_id", int64(claim.TokenID)))
	s.logAudit(ctx, "badge_claimed",
		"collection", collection.Hex(),
		"claimant", caller.Hex(),
		"token_id", claim.TokenID,
	)
	if s.metrics != nil {
		s.metrics.IncrementClaims()
	}
	return claim, nil
}

func (s *Service) claim(ctx context.Context, collection, caller common.Address, sig []byte, nonce domain.Nonce) (*models.Claim, error) {
	c, err := s.find(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !voucher.Verify(c.TrustedSigner, caller, nonce, sig) {
		return nil, dErrors.New(dErrors.CodeInvalidSignature, "voucher was not signed by the trusted signer")
	}

	now := requestcontext.Now(ctx)
	var tokenID uint64
	err = s.tx.RunInTx(txcontext.WithShardKey(ctx, collection.Hex()), func(ctx context.Context) error {
		id, err := s.store.RecordClaim(ctx, collection, nonce, caller, now)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return dErrors.New(dErrors.CodeNonceAlreadyUsed, "nonce already used")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "collection not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record claim")
		}
		if err := s.events.Emit(ctx, events.BadgeClaimed(collection, caller, id)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit claim event")
		}
		tokenID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.Claim{
		Collection: collection,
		Holder:     caller,
		TokenID:    tokenID,
		Nonce:      nonce,
		TokenURI:   c.TokenURI(tokenID),
		ClaimedAt:  now,
	}, nil
}

// Get returns the collection's read surface.
func (s *Service) Get(ctx context.Context, collection common.Address) (*models.Collection, error) {
	return s.find(ctx, collection)
}

// TokenURI fails with CodeNonexistentToken for IDs that were never minted.
func (s *Service) TokenURI(ctx context.Context, collection common.Address, tokenID uint64) (string, error) {
	c, err := s.find(ctx, collection)
	if err != nil {
		return "", err
	}
	if !c.Exists(tokenID) {
		return "", nonexistentToken(tokenID)
	}
	return c.TokenURI(tokenID), nil
}

// Token returns the holder and URI of a minted token.
func (s *Service) Token(ctx context.Context, collection common.Address, tokenID uint64) (*models.Token, error) {
	c, err := s.find(ctx, collection)
	if err != nil {
		return nil, err
	}
	holder, err := s.ownerOf(ctx, collection, tokenID)
	if err != nil {
		return nil, err
	}
	return &models.Token{Collection: collection, ID: tokenID, Holder: holder, URI: c.TokenURI(tokenID)}, nil
}

func (s *Service) OwnerOf(ctx context.Context, collection common.Address, tokenID uint64) (common.Address, error) {
	if _, err := s.find(ctx, collection); err != nil {
		return common.Address{}, err
	}
	return s.ownerOf(ctx, collection, tokenID)
}

func (s *Service) ownerOf(ctx context.Context, collection common.Address, tokenID uint64) (common.Address, error) {
	holder, err := s.store.OwnerOf(ctx, collection, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return common.Address{}, nonexistentToken(tokenID)
		}
		return common.Address{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token")
	}
	return holder, nil
}

func (s *Service) BalanceOf(ctx context.Context, collection, holder common.Address) (uint64, error) {
	if _, err := s.find(ctx, collection); err != nil {
		return 0, err
	}
	n, err := s.store.BalanceOf(ctx, collection, holder)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	return n, nil
}

func (s *Service) IsNonceUsed(ctx context.Context, collection common.Address, nonce domain.Nonce) (bool, error) {
	if _, err := s.find(ctx, collection); err != nil {
		return false, err
	}
	used, err := s.store.IsNonceUsed(ctx, collection, nonce)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check nonce")
	}
	return used, nil
}

// TransferOwnership hands the collection to newOwner. Only the current owner
// may call it.
func (s *Service) TransferOwnership(ctx context.Context, collection, caller, newOwner common.Address) (ownership.Transfer, error) {
	var transfer ownership.Transfer
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, collection.Hex()), func(ctx context.Context) error {
		c, err := s.find(ctx, collection)
		if err != nil {
			return err
		}
		t, err := c.TransferOwnership(caller, newOwner)
		if err != nil {
			return err
		}
		if err := s.store.UpdateOwner(ctx, collection, t.Previous, t.New); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeUnauthorized, "caller is not the owner")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update owner")
		}
		if err := s.events.Emit(ctx, events.OwnershipTransferred(collection, t.Previous, t.New)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit ownership event")
		}
		transfer = t
		return nil
	})
	if err != nil {
		return ownership.Transfer{}, err
	}

	s.logAudit(ctx, "collection_ownership_transferred",
		"collection", collection.Hex(),
		"previous_owner", transfer.Previous.Hex(),
		"new_owner", transfer.New.Hex(),
	)
	return transfer, nil
}

func (s *Service) find(ctx context.Context, collection common.Address) (*models.Collection, error) {
	c, err := s.store.FindByAddress(ctx, collection)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "collection not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load collection")
	}
	return c, nil
}

func nonexistentToken(tokenID uint64) error {
	return dErrors.New(dErrors.CodeNonexistentToken, fmt.Sprintf("token %d does not exist", tokenID))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
