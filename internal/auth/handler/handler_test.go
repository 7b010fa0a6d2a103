package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"chronostamp/internal/auth/handler/mocks"
	"chronostamp/internal/auth/models"
	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	addr    common.Address
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.addr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) TestChallenge() {
	s.Run("issues a challenge", func() {
		c := models.NewChallenge(s.addr, time.Now(), time.Minute)
		s.service.EXPECT().IssueChallenge(gomock.Any(), s.addr).Return(c, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/challenge", ChallengeRequest{Address: s.addr.Hex()})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[ChallengeResponse](s.T(), rr)
		s.Equal(c.ID.String(), resp.ChallengeID)
		s.Equal(c.Message, resp.Message)
	})

	s.Run("bad address", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/challenge", ChallengeRequest{Address: "nope"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("malformed body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/auth/challenge", "{")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("store failure", func() {
		s.service.EXPECT().IssueChallenge(gomock.Any(), s.addr).
			Return(nil, dErrors.Wrap(errors.New("down"), dErrors.CodeInternal, "failed to save challenge"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/challenge", ChallengeRequest{Address: s.addr.Hex()})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	})
}

func (s *HandlerSuite) TestToken() {
	id := uuid.New()

	s.Run("exchanges a signed challenge", func() {
		exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		s.service.EXPECT().ExchangeToken(gomock.Any(), id, []byte{0xab, 0xcd}).
			Return(&models.Session{AccessToken: "tok", Address: s.addr, ExpiresAt: exp}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", TokenRequest{ChallengeID: id.String(), Signature: "0xabcd"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[TokenResponse](s.T(), rr)
		s.Equal("tok", resp.AccessToken)
		s.Equal("Bearer", resp.TokenType)
		s.Equal(s.addr.Hex(), resp.Address)
		s.True(exp.Equal(resp.ExpiresAt))
	})

	s.Run("invalid challenge id", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", TokenRequest{ChallengeID: "x", Signature: "0xab"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("signature not hex", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", TokenRequest{ChallengeID: id.String(), Signature: "zz"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("wrong signer", func() {
		s.service.EXPECT().ExchangeToken(gomock.Any(), id, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidSignature, "challenge signature does not match address"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", TokenRequest{ChallengeID: id.String(), Signature: "0xab"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeInvalidSignature))
	})

	s.Run("expired challenge", func() {
		s.service.EXPECT().ExchangeToken(gomock.Any(), id, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnauthenticated, "challenge not found or expired"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", TokenRequest{ChallengeID: id.String(), Signature: "0xab"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthenticated))
	})
}
