package testutil

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	dErrors "chronostamp/pkg/domain-errors"
	"chronostamp/pkg/platform/httputil"
	"chronostamp/pkg/requestcontext"
)

// HeaderCaller is read by HeaderAuth in place of a bearer token.
const HeaderCaller = "X-Test-Caller"

// WithCaller places caller in the request context, as the auth middleware
// does after validating a token.
func WithCaller(req *http.Request, caller common.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// HeaderAuth stands in for the JWT middleware in handler tests: the caller
// address comes from the X-Test-Caller header and a missing header is a 401.
func HeaderAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderCaller)
		if !common.IsHexAddress(raw) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "missing caller"))
			return
		}
		next.ServeHTTP(w, WithCaller(r, common.HexToAddress(raw)))
	})
}

// AsCaller sets the header HeaderAuth reads.
func AsCaller(req *http.Request, caller common.Address) *http.Request {
	req.Header.Set(HeaderCaller, caller.Hex())
	return req
}
