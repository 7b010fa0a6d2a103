package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"chronostamp/internal/ownership"
	"chronostamp/internal/registry/models"
	"chronostamp/pkg/domain"
	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/httputil"
	"chronostamp/pkg/requestcontext"
)

// DefaultPageLimit applies when the limit query parameter is absent.
const DefaultPageLimit = 100

type Service interface {
	Get(ctx context.Context) (*models.Registry, error)
	GetTotalBadges(ctx context.Context) (uint64, error)
	GetBadgesPaginated(ctx context.Context, offset, limit uint64) (*models.Page, error)
	CreateNewBadge(ctx context.Context, caller common.Address, req models.CreateBadgeRequest) (common.Address, error)
	TransferOwnership(ctx context.Context, caller, newOwner common.Address) (ownership.Transfer, error)
}

type Handler struct {
	service     Service
	logger      *slog.Logger
	requireAuth func(http.Handler) http.Handler
}

func New(service Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{service: service, logger: logger, requireAuth: requireAuth}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/registry", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Get("/badges", h.handleList)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/badges", h.handleCreate)
			r.Post("/ownership", h.handleTransferOwnership)
		})
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reg, err := h.service.Get(ctx)
	if err != nil {
		h.writeError(w, r, "load registry", err)
		return
	}
	total, err := h.service.GetTotalBadges(ctx)
	if err != nil {
		h.writeError(w, r, "count badges", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RegistryResponse{
		Address:     reg.Address.Hex(),
		Owner:       reg.Owner().Hex(),
		TotalBadges: total,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	offset, err := uintParam(r, "offset", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := uintParam(r, "limit", DefaultPageLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.GetBadgesPaginated(r.Context(), offset, limit)
	if err != nil {
		h.writeError(w, r, "list badges", err)
		return
	}
	resp := PageResponse{
		Offset:      page.Offset,
		Limit:       page.Limit,
		Total:       page.Total,
		Collections: make([]string, len(page.Collections)),
	}
	for i, addr := range page.Collections {
		resp.Collections[i] = addr.Hex()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req CreateBadgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create badge request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	// An absent signer is the zero address so the service reports it in
	// validation order.
	var signer common.Address
	if req.TrustedSigner != "" {
		parsed, err := domain.ParseAddress(req.TrustedSigner)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		signer = parsed
	}

	addr, err := h.service.CreateNewBadge(ctx, caller, models.CreateBadgeRequest{
		Name:          req.Name,
		Symbol:        req.Symbol,
		BaseURI:       req.BaseURI,
		TrustedSigner: signer,
	})
	if err != nil {
		h.writeError(w, r, "create badge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, CreateBadgeResponse{Collection: addr.Hex()})
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
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
	t, err := h.service.TransferOwnership(r.Context(), caller, newOwner)
	if err != nil {
		h.writeError(w, r, "transfer registry ownership", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnershipResponse{
		PreviousOwner: t.Previous.Hex(),
		NewOwner:      t.New.Hex(),
	})
}

func uintParam(r *http.Request, name string, fallback uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
	}
	return v, nil
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
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "failed to "+op,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
