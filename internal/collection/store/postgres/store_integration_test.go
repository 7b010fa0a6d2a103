//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"chronostamp/internal/collection/models"
	"chronostamp/internal/collection/store/postgres"
	"chronostamp/pkg/domain"
	"chronostamp/pkg/platform/sentinel"
	txcontext "chronostamp/pkg/platform/tx"
	"chronostamp/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.PostgresStore
	c     *models.Collection
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

var (
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	signer = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx))

	c, err := models.NewCollection(
		common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		common.HexToAddress("0x00000000000000000000000000000000000000d1"),
		models.Config{Name: "N", Symbol: "S", BaseURI: "ipfs://base", TrustedSigner: signer, Owner: owner},
		time.Now(),
	)
	s.Require().NoError(err)
	s.c = c
	s.Require().NoError(s.store.Create(ctx, c))
}

func nonce(b byte) domain.Nonce {
	var n domain.Nonce
	n[31] = b
	return n
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()

	got, err := s.store.FindByAddress(ctx, s.c.Address)
	s.Require().NoError(err)
	s.Equal("N", got.Name)
	s.Equal(signer, got.TrustedSigner)
	s.Equal(owner, got.Owner())
	s.Equal(models.FirstTokenID, got.NextTokenID)

	s.ErrorIs(s.store.Create(ctx, s.c), sentinel.ErrConflict)

	n, err := s.store.CountByDeployer(ctx, s.c.Deployer)
	s.Require().NoError(err)
	s.Equal(uint64(1), n)

	_, err = s.store.FindByAddress(ctx, alice)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRecordClaim() {
	ctx := context.Background()

	id, err := s.store.RecordClaim(ctx, s.c.Address, nonce(1), alice, time.Now())
	s.Require().NoError(err)
	s.Equal(uint64(1), id)

	_, err = s.store.RecordClaim(ctx, s.c.Address, nonce(1), bob, time.Now())
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	id, err = s.store.RecordClaim(ctx, s.c.Address, nonce(2), alice, time.Now())
	s.Require().NoError(err)
	s.Equal(uint64(2), id)

	used, err := s.store.IsNonceUsed(ctx, s.c.Address, nonce(1))
	s.Require().NoError(err)
	s.True(used)

	holder, err := s.store.OwnerOf(ctx, s.c.Address, 2)
	s.Require().NoError(err)
	s.Equal(alice, holder)

	_, err = s.store.OwnerOf(ctx, s.c.Address, 3)
	s.ErrorIs(err, sentinel.ErrNotFound)

	bal, err := s.store.BalanceOf(ctx, s.c.Address, alice)
	s.Require().NoError(err)
	s.Equal(uint64(2), bal)

	got, err := s.store.FindByAddress(ctx, s.c.Address)
	s.Require().NoError(err)
	s.Equal(uint64(3), got.NextTokenID)
}

func (s *PostgresStoreSuite) TestRecordClaimRollsBackWithOuterTx() {
	ctx := context.Background()
	runner := txcontext.NewSQL(s.pg.DB, 5*time.Second)

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.RecordClaim(ctx, s.c.Address, nonce(9), alice, time.Now()); err != nil {
			return err
		}
		return sentinel.ErrUnavailable
	})
	s.ErrorIs(err, sentinel.ErrUnavailable)

	used, err := s.store.IsNonceUsed(ctx, s.c.Address, nonce(9))
	s.Require().NoError(err)
	s.False(used)
}

func (s *PostgresStoreSuite) TestConcurrentClaimsOfOneNonce() {
	ctx := context.Background()
	var wins, replays atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.RecordClaim(ctx, s.c.Address, nonce(7), alice, time.Now())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				replays.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(7), replays.Load())
}

func (s *PostgresStoreSuite) TestUpdateOwner() {
	ctx := context.Background()
	s.Require().NoError(s.store.UpdateOwner(ctx, s.c.Address, owner, bob))
	s.ErrorIs(s.store.UpdateOwner(ctx, s.c.Address, owner, alice), sentinel.ErrConflict)

	got, err := s.store.FindByAddress(ctx, s.c.Address)
	s.Require().NoError(err)
	s.Equal(bob, got.Owner())
}
