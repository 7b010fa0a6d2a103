package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	collection "chronostamp/internal/collection/models"
	"chronostamp/internal/events"
	"chronostamp/internal/ownership"
	"chronostamp/internal/registry/metrics"
	"chronostamp/internal/registry/models"
	"chronostamp/pkg/domain"
	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/sentinel"
	txcontext "chronostamp/pkg/platform/tx"
	"chronostamp/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, r *models.Registry) error
	Load(ctx context.Context, addr common.Address) (*models.Registry, error)
	UpdateOwner(ctx context.Context, addr, previous, next common.Address) error
	Append(ctx context.Context, registry, collection common.Address) (uint64, error)
	Count(ctx context.Context, registry common.Address) (uint64, error)
	Range(ctx context.Context, registry common.Address, start, end uint64) ([]common.Address, error)
}

// Deployer constructs a new collection instance on behalf of the registry.
type Deployer interface {
	Deploy(ctx context.Context, deployer common.Address, cfg collection.Config) (*collection.Collection, error)
}

type EventEmitter interface {
	Emit(ctx context.Context, e events.Event) error
}

// Service operates one registry, identified by its address.
type Service struct {
	address  common.Address
	store    Store
	deployer Deployer
	tx       txcontext.Runner
	policy   models.OwnerPolicy
	events   EventEmitter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
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

// WithOwnerPolicy selects who owns collections created by the registry.
// Defaults to the calling administrator.
func WithOwnerPolicy(p models.OwnerPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func New(address common.Address, store Store, deployer Deployer, tx txcontext.Runner, opts ...Option) (*Service, error) {
	if domain.IsZeroAddress(address) {
		return nil, errors.New("registry address is required")
	}
	if store == nil {
		return nil, errors.New("registry store is required")
	}
	if deployer == nil {
		return nil, errors.New("collection deployer is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{
		address:  address,
		store:    store,
		deployer: deployer,
		tx:       tx,
		policy:   models.OwnerPolicyCaller,
		events:   events.Discard{},
		tracer:   otel.Tracer("chronostamp/internal/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Bootstrap creates the registry with owner on first start. A registry that
// already exists keeps its stored owner.
func (s *Service) Bootstrap(ctx context.Context, owner common.Address) (*models.Registry, error) {
	var out *models.Registry
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, s.address.Hex()), func(ctx context.Context) error {
		existing, err := s.store.Load(ctx, s.address)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
		}

		r, err := models.NewRegistry(s.address, owner, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.store.Create(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registry")
		}
		if err := s.events.Emit(ctx, events.OwnershipTransferred(s.address, common.Address{}, owner)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit ownership event")
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Owner() != owner && s.logger != nil {
		s.logger.WarnContext(ctx, "configured registry owner ignored; stored owner kept",
			"registry", s.address.Hex(),
			"stored_owner", out.Owner().Hex(),
			"configured_owner", owner.Hex(),
		)
	}
	return out, nil
}

// Get returns the registry.
func (s *Service) Get(ctx context.Context) (*models.Registry, error) {
	r, err := s.store.Load(ctx, s.address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registry not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
	}
	return r, nil
}

// CreateNewBadge deploys a collection configured by req and appends its
// address to the deployed list. Only the registry owner may call it; the
// owner check runs before validation.
func (s *Service) CreateNewBadge(ctx context.Context, caller common.Address, req models.CreateBadgeRequest) (common.Address, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry.CreateNewBadge",
		trace.WithAttributes(attribute.String("caller", caller.Hex())))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveCreate(start)
	}

	var (
		created common.Address
		total   uint64
	)
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, s.address.Hex()), func(ctx context.Context) error {
		r, err := s.Get(ctx)
		if err != nil {
			return err
		}
		if err := r.RequireOwner(caller); err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return err
		}

		c, err := s.deployer.Deploy(ctx, s.address, req.Config(s.policy.OwnerFor(s.address, caller)))
		if err != nil {
			return err
		}
		idx, err := s.store.Append(ctx, s.address, c.Address)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register collection")
		}
		if err := s.events.Emit(ctx, events.BadgeCreated(s.address, caller, c.Address)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit creation event")
		}
		created = c.Address
		total = idx + 1
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		if s.logger != nil {
			s.logger.WarnContext(ctx, "create badge rejected",
				"caller", caller.Hex(),
				"reason", dErrors.CodeOf(err),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return common.Address{}, err
	}

	span.SetAttributes(attribute.String("collection", created.Hex()))
	s.logAudit(ctx, "badge_created",
		"registry", s.address.Hex(),
		"creator", caller.Hex(),
		"collection", created.Hex(),
		"total", total,
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated(total)
	}
	return created, nil
}

// GetTotalBadges returns the length of the deployed list.
func (s *Service) GetTotalBadges(ctx context.Context) (uint64, error) {
	n, err := s.store.Count(ctx, s.address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "registry not initialized")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count collections")
	}
	return n, nil
}

// GetBadgesPaginated returns up to limit addresses starting at offset, in
// creation order. It is empty when limit is zero or offset is past the end.
func (s *Service) GetBadgesPaginated(ctx context.Context, offset, limit uint64) (*models.Page, error) {
	total, err := s.GetTotalBadges(ctx)
	if err != nil {
		return nil, err
	}
	page := &models.Page{Offset: offset, Limit: limit, Total: total, Collections: []common.Address{}}
	start, end := models.Window(total, offset, limit)
	if start == end {
		return page, nil
	}
	addrs, err := s.store.Range(ctx, s.address, start, end)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list collections")
	}
	page.Collections = addrs
	return page, nil
}

// TransferOwnership hands the registry to newOwner.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner common.Address) (ownership.Transfer, error) {
	var transfer ownership.Transfer
	err := s.tx.RunInTx(txcontext.WithShardKey(ctx, s.address.Hex()), func(ctx context.Context) error {
		r, err := s.Get(ctx)
		if err != nil {
			return err
		}
		t, err := r.TransferOwnership(caller, newOwner)
		if err != nil {
			return err
		}
		if err := s.store.UpdateOwner(ctx, s.address, t.Previous, t.New); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeUnauthorized, "caller is not the owner")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update owner")
		}
		if err := s.events.Emit(ctx, events.OwnershipTransferred(s.address, t.Previous, t.New)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit ownership event")
		}
		transfer = t
		return nil
	})
	if err != nil {
		return ownership.Transfer{}, err
	}

	s.logAudit(ctx, "registry_ownership_transferred",
		"registry", s.address.Hex(),
		"previous_owner", transfer.Previous.Hex(),
		"new_owner", transfer.New.Hex(),
	)
	return transfer, nil
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
