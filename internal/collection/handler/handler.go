package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"chronostamp/internal/collection/models"
	"chronostamp/internal/ownership"
	"chronostamp/pkg/domain"
	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/httputil"
	"chronostamp/pkg/requestcontext"
)

// Service is the collection surface exposed over HTTP.
type Service interface {
	Get(ctx context.Context, collection common.Address) (*models.Collection, error)
	Token(ctx context.Context, collection common.Address, tokenID uint64) (*models.Token, error)
	BalanceOf(ctx context.Context, collection, holder common.Address) (uint64, error)
	IsNonceUsed(ctx context.Context, collection common.Address, nonce domain.Nonce) (bool, error)
	Claim(ctx context.Context, collection, caller common.Address, sig []byte, nonce domain.Nonce) (*models.Claim, error)
	TransferOwnership(ctx context.Context, collection, caller, newOwner common.Address) (ownership.Transfer, error)
}

type Middleware = func(http.Handler) http.Handler

// Handler serves /collections routes.
type Handler struct {
	service     Service
	logger      *slog.Logger
	requireAuth Middleware
	claimLimit  Middleware
}

type Option func(*Handler)

// WithClaimLimit throttles POST /claim.
func WithClaimLimit(mw Middleware) Option {
	return func(h *Handler) {
		h.claimLimit = mw
	}
}

func New(service Service, logger *slog.Logger, requireAuth Middleware, opts ...Option) *Handler {
	h := &Handler{
		service:     service,
		logger:      logger,
		requireAuth: requireAuth,
		claimLimit:  passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }

func (h *Handler) Register(r chi.Router) {
	r.Route("/collections/{address}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Get("/tokens/{id}", h.handleGetToken)
		r.Get("/balances/{holder}", h.handleBalance)
		r.Get("/nonces/{nonce}", h.handleNonce)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.With(h.claimLimit).Post("/claim", h.handleClaim)
			r.Post("/ownership", h.handleTransferOwnership)
		})
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.collectionAddress(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), addr)
	if err != nil {
		h.writeError(w, r, "get collection", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCollectionResponse(c))
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.collectionAddress(w, r)
	if !ok {
		return
	}
	tokenID, err := domain.ParseTokenID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tok, err := h.service.Token(r.Context(), addr, tokenID)
	if err != nil {
		h.writeError(w, r, "get token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		Collection: tok.Collection.Hex(),
		TokenID:    tok.ID,
		Owner:      tok.Holder.Hex(),
		TokenURI:   tok.URI,
	})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.collectionAddress(w, r)
	if !ok {
		return
	}
	holder, err := domain.ParseAddress(chi.URLParam(r, "holder"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.BalanceOf(r.Context(), addr, holder)
	if err != nil {
		h.writeError(w, r, "get balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Holder: holder.Hex(), Balance: n})
}

func (h *Handler) handleNonce(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.collectionAddress(w, r)
	if !ok {
		return
	}
	nonce, err := domain.ParseNonce(chi.URLParam(r, "nonce"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	used, err := h.service.IsNonceUsed(r.Context(), addr, nonce)
	if err != nil {
		h.writeError(w, r, "check nonce", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NonceResponse{Nonce: nonce.Hex(), Used: used})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, ok := h.collectionAddress(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid claim request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "signature must be 0x-prefixed hex"))
		return
	}
	nonce, err := domain.ParseNonce(req.Nonce)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.service.Claim(ctx, addr, caller, sig, nonce)
	if err != nil {
		h.writeError(w, r, "claim badge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ClaimResponse{
		Collection: claim.Collection.Hex(),
		Claimant:   claim.Holder.Hex(),
		TokenID:    claim.TokenID,
		TokenURI:   claim.TokenURI,
		Nonce:      claim.Nonce.Hex(),
	})
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.collectionAddress(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	newOwner, err := domain.ParseAddress(req.NewOwner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.service.TransferOwnership(r.Context(), addr, caller, newOwner)
	if err != nil {
		h.writeError(w, r, "transfer collection ownership", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnershipResponse{
		PreviousOwner: t.Previous.Hex(),
		NewOwner:      t.New.Hex(),
	})
}

func (h *Handler) collectionAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return common.Address{}, false
	}
	return addr, true
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, ok := requestcontext.Caller(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return common.Address{}, false
	}
	return caller, true
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
