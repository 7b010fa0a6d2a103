//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"chronostamp/internal/registry/models"
	"chronostamp/internal/registry/store/postgres"
	"chronostamp/pkg/platform/sentinel"
	"chronostamp/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.PostgresStore
	addr  common.Address
	owner common.Address
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.pg.DB)
	s.addr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	s.owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx))
	r, err := models.NewRegistry(s.addr, s.owner, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, r))
}

func (s *PostgresStoreSuite) TestLoad() {
	ctx := context.Background()
	r, err := s.store.Load(ctx, s.addr)
	s.Require().NoError(err)
	s.Equal(s.owner, r.Owner())

	_, err = s.store.Load(ctx, s.owner)
	s.ErrorIs(err, sentinel.ErrNotFound)

	dup, err := models.NewRegistry(s.addr, s.owner, time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestAppendAndRange() {
	ctx := context.Background()
	var want []common.Address
	for i := range 5 {
		c := common.BytesToAddress([]byte{0xc0, byte(i + 1)})
		idx, err := s.store.Append(ctx, s.addr, c)
		s.Require().NoError(err)
		s.Equal(uint64(i), idx)
		want = append(want, c)
	}

	n, err := s.store.Count(ctx, s.addr)
	s.Require().NoError(err)
	s.Equal(uint64(5), n)

	got, err := s.store.Range(ctx, s.addr, 0, 5)
	s.Require().NoError(err)
	s.Equal(want, got)

	got, err = s.store.Range(ctx, s.addr, 3, 5)
	s.Require().NoError(err)
	s.Equal(want[3:], got)

	got, err = s.store.Range(ctx, s.addr, 5, 5)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *PostgresStoreSuite) TestUpdateOwner() {
	ctx := context.Background()
	next := common.HexToAddress("0x00000000000000000000000000000000000000a2")
	s.Require().NoError(s.store.UpdateOwner(ctx, s.addr, s.owner, next))
	s.ErrorIs(s.store.UpdateOwner(ctx, s.addr, s.owner, next), sentinel.ErrConflict)

	r, err := s.store.Load(ctx, s.addr)
	s.Require().NoError(err)
	s.Equal(next, r.Owner())
}
