package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Deployer,EventEmitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	collectionmodels "chronostamp/internal/collection/models"
	collectionservice "chronostamp/internal/collection/service"
	collectionstore "chronostamp/internal/collection/store/memory"
	"chronostamp/internal/events"
	eventstore "chronostamp/internal/events/store/memory"
	"chronostamp/internal/registry/metrics"
	"chronostamp/internal/registry/models"
	"chronostamp/internal/registry/service/mocks"
	"chronostamp/internal/registry/store/memory"
	dErrors "chronostamp/pkg/domain-errors"
	txcontext "chronostamp/pkg/platform/tx"
)

var (
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	owner        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger     = common.HexToAddress("0x00000000000000000000000000000000000000a9")
	signer       = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func badgeRequest(name string) models.CreateBadgeRequest {
	return models.CreateBadgeRequest{
		Name:          name,
		Symbol:        "CSB",
		BaseURI:       "https://api.example.com/metadata",
		TrustedSigner: signer,
	}
}

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	store       *memory.InMemoryStore
	collections *collectionservice.Service
	events      *eventstore.InMemoryStore
	metrics     *metrics.Metrics
	service     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	svc, err := New(registryAddr, s.store, s.collections, txcontext.NewSharded(txcontext.DefaultTimeout), opts...)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.events = eventstore.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	runner := txcontext.NewSharded(txcontext.DefaultTimeout)

	collections, err := collectionservice.New(collectionstore.New(), runner,
		collectionservice.WithEvents(events.NewPublisher(s.events)))
	s.Require().NoError(err)
	s.collections = collections

	s.service = s.newService(WithEvents(events.NewPublisher(s.events)), WithMetrics(s.metrics))
	_, err = s.service.Bootstrap(s.ctx, owner)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestNewValidation() {
	runner := txcontext.NewSharded(0)
	_, err := New(common.Address{}, s.store, s.collections, runner)
	s.Error(err)
	_, err = New(registryAddr, nil, s.collections, runner)
	s.Error(err)
	_, err = New(registryAddr, s.store, nil, runner)
	s.Error(err)
	_, err = New(registryAddr, s.store, s.collections, nil)
	s.Error(err)
}

func (s *ServiceSuite) TestBootstrap() {
	s.Run("fresh registry is empty and owned", func() {
		r, err := s.service.Get(s.ctx)
		s.Require().NoError(err)
		s.Equal(owner, r.Owner())

		n, err := s.service.GetTotalBadges(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("restart keeps the stored owner", func() {
		_, err := s.service.TransferOwnership(s.ctx, owner, stranger)
		s.Require().NoError(err)

		r, err := s.newService().Bootstrap(s.ctx, owner)
		s.Require().NoError(err)
		s.Equal(stranger, r.Owner())
	})

	s.Run("zero owner rejected on first start", func() {
		svc, err := New(common.HexToAddress("0x00000000000000000000000000000000000000f2"),
			s.store, s.collections, txcontext.NewSharded(0))
		s.Require().NoError(err)
		_, err = svc.Bootstrap(s.ctx, common.Address{})
		s.True(dErrors.HasCode(err, dErrors.CodeZeroOwner))
	})
}

func (s *ServiceSuite) TestCreateNewBadge() {
	s.Run("owner creates a collection configured as requested", func() {
		addr, err := s.service.CreateNewBadge(s.ctx, owner, badgeRequest("ChronoStamp Badge"))
		s.Require().NoError(err)
		s.Equal(crypto.CreateAddress(registryAddr, 0), addr)

		c, err := s.collections.Get(s.ctx, addr)
		s.Require().NoError(err)
		s.Equal("ChronoStamp Badge", c.Name)
		s.Equal("CSB", c.Symbol)
		s.Equal(owner, c.Owner())
		s.Equal(signer, c.TrustedSigner)
		s.Equal("https://api.example.com/metadata", c.BaseURI)

		evs, err := s.events.ListBySource(s.ctx, registryAddr, []events.Kind{events.KindBadgeCreated}, 0)
		s.Require().NoError(err)
		s.Require().Len(evs, 1)
		s.Equal(owner, evs[0].Creator)
		s.Equal(addr, evs[0].Collection)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.BadgesCreated))
	})

	s.Run("non-owner rejected and list unchanged", func() {
		before, err := s.service.GetTotalBadges(s.ctx)
		s.Require().NoError(err)

		_, err = s.service.CreateNewBadge(s.ctx, stranger, badgeRequest("Nope"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		after, err := s.service.GetTotalBadges(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})

	s.Run("config strings are stored verbatim", func() {
		addr, err := s.service.CreateNewBadge(s.ctx, owner, models.CreateBadgeRequest{
			Name:          "  Spaced Badge ",
			Symbol:        " CSB",
			BaseURI:       "https://x/meta ",
			TrustedSigner: signer,
		})
		s.Require().NoError(err)

		c, err := s.collections.Get(s.ctx, addr)
		s.Require().NoError(err)
		s.Equal("  Spaced Badge ", c.Name)
		s.Equal(" CSB", c.Symbol)
		s.Equal("https://x/meta ", c.BaseURI)
	})

	s.Run("whitespace name is not empty", func() {
		_, err := s.service.CreateNewBadge(s.ctx, owner, models.CreateBadgeRequest{
			Name: " ", Symbol: "S", BaseURI: "u", TrustedSigner: signer,
		})
		s.Require().NoError(err)
	})

	s.Run("owner check runs before validation", func() {
		_, err := s.service.CreateNewBadge(s.ctx, stranger, models.CreateBadgeRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("empty name and zero signer reports empty name", func() {
		_, err := s.service.CreateNewBadge(s.ctx, owner, models.CreateBadgeRequest{Symbol: "S", BaseURI: "u"})
		s.True(dErrors.HasCode(err, dErrors.CodeEmptyName), "got %v", err)
	})

	s.Run("each validation failure", func() {
		cases := []struct {
			req  models.CreateBadgeRequest
			code dErrors.Code
		}{
			{models.CreateBadgeRequest{Name: "N", BaseURI: "u", TrustedSigner: signer}, dErrors.CodeEmptySymbol},
			{models.CreateBadgeRequest{Name: "N", Symbol: "S", TrustedSigner: signer}, dErrors.CodeEmptyBaseURI},
			{models.CreateBadgeRequest{Name: "N", Symbol: "S", BaseURI: "u"}, dErrors.CodeZeroSigner},
		}
		before, err := s.service.GetTotalBadges(s.ctx)
		s.Require().NoError(err)
		for _, tc := range cases {
			_, err := s.service.CreateNewBadge(s.ctx, owner, tc.req)
			s.True(dErrors.HasCode(err, tc.code), "want %s got %v", tc.code, err)
		}
		after, err := s.service.GetTotalBadges(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})
}

func (s *ServiceSuite) TestRegistryOwnerPolicy() {
	svc := s.newService(WithOwnerPolicy(models.OwnerPolicyRegistry))
	addr, err := svc.CreateNewBadge(s.ctx, owner, badgeRequest("Owned by registry"))
	s.Require().NoError(err)

	c, err := s.collections.Get(s.ctx, addr)
	s.Require().NoError(err)
	s.Equal(registryAddr, c.Owner())
}

func (s *ServiceSuite) TestPagination() {
	var created []common.Address
	for i := range 5 {
		addr, err := s.service.CreateNewBadge(s.ctx, owner, badgeRequest("Badge "+string(rune('A'+i))))
		s.Require().NoError(err)
		created = append(created, addr)
	}

	total, err := s.service.GetTotalBadges(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(5), total)

	s.Run("full enumeration matches creation order", func() {
		page, err := s.service.GetBadgesPaginated(s.ctx, 0, total)
		s.Require().NoError(err)
		s.Equal(created, page.Collections)
	})

	s.Run("tail is clamped", func() {
		page, err := s.service.GetBadgesPaginated(s.ctx, 3, 10)
		s.Require().NoError(err)
		s.Equal(created[3:], page.Collections)
		s.Equal(uint64(5), page.Total)
	})

	s.Run("offset at end is empty", func() {
		page, err := s.service.GetBadgesPaginated(s.ctx, 5, 1)
		s.Require().NoError(err)
		s.Empty(page.Collections)
	})

	s.Run("zero limit is empty", func() {
		page, err := s.service.GetBadgesPaginated(s.ctx, 0, 0)
		s.Require().NoError(err)
		s.Empty(page.Collections)
	})

	s.Run("pages concatenate to the full list", func() {
		var all []common.Address
		for offset := uint64(0); offset < total; offset += 2 {
			page, err := s.service.GetBadgesPaginated(s.ctx, offset, 2)
			s.Require().NoError(err)
			all = append(all, page.Collections...)
		}
		s.Equal(created, all)
	})

	s.Run("reads never mutate", func() {
		n, err := s.service.GetTotalBadges(s.ctx)
		s.Require().NoError(err)
		s.Equal(total, n)
	})
}

func (s *ServiceSuite) TestTransferOwnership() {
	s.Run("non-owner rejected", func() {
		_, err := s.service.TransferOwnership(s.ctx, stranger, stranger)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		r, err := s.service.Get(s.ctx)
		s.Require().NoError(err)
		s.Equal(owner, r.Owner())
	})

	s.Run("zero owner rejected", func() {
		_, err := s.service.TransferOwnership(s.ctx, owner, common.Address{})
		s.True(dErrors.HasCode(err, dErrors.CodeZeroOwner))
	})

	s.Run("new owner gains and old owner loses the create right", func() {
		t, err := s.service.TransferOwnership(s.ctx, owner, stranger)
		s.Require().NoError(err)
		s.Equal(owner, t.Previous)

		_, err = s.service.CreateNewBadge(s.ctx, owner, badgeRequest("Old owner"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, err = s.service.CreateNewBadge(s.ctx, stranger, badgeRequest("New owner"))
		s.Require().NoError(err)

		evs, err := s.events.ListBySource(s.ctx, registryAddr, []events.Kind{events.KindOwnershipTransferred}, 0)
		s.Require().NoError(err)
		s.Require().Len(evs, 2)
		s.Equal(stranger, evs[1].NewOwner)
	})
}

type ServiceMockSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	store    *mocks.MockStore
	deployer *mocks.MockDeployer
	emitter  *mocks.MockEventEmitter
	service  *Service
	registry *models.Registry
}

func TestServiceMockSuite(t *testing.T) {
	suite.Run(t, new(ServiceMockSuite))
}

func (s *ServiceMockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.deployer = mocks.NewMockDeployer(s.ctrl)
	s.emitter = mocks.NewMockEventEmitter(s.ctrl)
	svc, err := New(registryAddr, s.store, s.deployer, txcontext.NewSharded(0), WithEvents(s.emitter))
	s.Require().NoError(err)
	s.service = svc
	s.registry, err = models.NewRegistry(registryAddr, owner, time.Now())
	s.Require().NoError(err)
}

func (s *ServiceMockSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceMockSuite) TestDeployFailurePropagates() {
	s.store.EXPECT().Load(gomock.Any(), registryAddr).Return(s.registry, nil)
	s.deployer.EXPECT().Deploy(gomock.Any(), registryAddr, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "collection address already taken"))

	_, err := s.service.CreateNewBadge(context.Background(), owner, badgeRequest("X"))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceMockSuite) TestAppendFailureIsInternal() {
	deployed := &collectionmodels.Collection{Address: common.HexToAddress("0x00000000000000000000000000000000000000c1")}
	s.store.EXPECT().Load(gomock.Any(), registryAddr).Return(s.registry, nil)
	s.deployer.EXPECT().Deploy(gomock.Any(), registryAddr, gomock.Any()).Return(deployed, nil)
	s.store.EXPECT().Append(gomock.Any(), registryAddr, deployed.Address).Return(uint64(0), errors.New("disk full"))

	_, err := s.service.CreateNewBadge(context.Background(), owner, badgeRequest("X"))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceMockSuite) TestDeployUsesCallerAsOwnerByDefault() {
	deployed := &collectionmodels.Collection{Address: common.HexToAddress("0x00000000000000000000000000000000000000c1")}
	s.store.EXPECT().Load(gomock.Any(), registryAddr).Return(s.registry, nil)
	s.deployer.EXPECT().Deploy(gomock.Any(), registryAddr, badgeRequest("X").Config(owner)).Return(deployed, nil)
	s.store.EXPECT().Append(gomock.Any(), registryAddr, deployed.Address).Return(uint64(0), nil)
	s.emitter.EXPECT().Emit(gomock.Any(), events.BadgeCreated(registryAddr, owner, deployed.Address)).Return(nil)

	addr, err := s.service.CreateNewBadge(context.Background(), owner, badgeRequest("X"))
	s.Require().NoError(err)
	s.Equal(deployed.Address, addr)
}

func (s *ServiceMockSuite) TestPaginationSkipsStoreForEmptyWindow() {
	s.store.EXPECT().Count(gomock.Any(), registryAddr).Return(uint64(3), nil)

	page, err := s.service.GetBadgesPaginated(context.Background(), 3, 10)
	s.Require().NoError(err)
	s.Empty(page.Collections)
	s.Equal(uint64(3), page.Total)
}
