package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chronostamp/internal/auth/models"
	"chronostamp/pkg/domain"
	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/httputil"
	"chronostamp/pkg/requestcontext"
)

type Service interface {
	IssueChallenge(ctx context.Context, address common.Address) (*models.Challenge, error)
	ExchangeToken(ctx context.Context, challengeID uuid.UUID, sig []byte) (*models.Session, error)
}

// Handler serves the login flow under /auth.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/challenge", h.handleChallenge)
	r.Post("/auth/token", h.handleToken)
}

func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	addr, err := domain.ParseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.IssueChallenge(ctx, addr)
	if err != nil {
		h.writeError(w, r, "issue challenge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ChallengeResponse{
		ChallengeID: c.ID.String(),
		Message:     c.Message,
		ExpiresAt:   c.ExpiresAt,
	})
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	id, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "challenge_id must be a UUID"))
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "signature must be 0x-prefixed hex"))
		return
	}
	session, err := h.service.ExchangeToken(ctx, id, sig)
	if err != nil {
		h.writeError(w, r, "exchange token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   session.ExpiresAt,
		Address:     session.Address.Hex(),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
