package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/httputil"
	"chronostamp/pkg/requestcontext"
)

// TokenValidator resolves a bearer token to the caller address it was issued to.
type TokenValidator interface {
	ValidateToken(tokenString string) (common.Address, error)
}

// RequireCaller rejects requests without a valid bearer token and places the
// caller address in the request context.
func RequireCaller(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthenticated access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "missing or invalid Authorization header"))
				return
			}

			caller, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthenticated access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}
