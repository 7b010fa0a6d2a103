package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outermost code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("claim: %w", New(CodeNonceAlreadyUsed, "nonce already used"))
		assert.True(t, HasCode(err, CodeNonceAlreadyUsed))
		assert.False(t, HasCode(err, CodeInvalidSignature))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("nil is never coded", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeInternal, "failed to load collection")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load collection: connection reset", err.Error())
	})
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeEmptyName:        http.StatusBadRequest,
		CodeZeroSigner:       http.StatusBadRequest,
		CodeUnauthenticated:  http.StatusUnauthorized,
		CodeUnauthorized:     http.StatusForbidden,
		CodeNonexistentToken: http.StatusNotFound,
		CodeNonceAlreadyUsed: http.StatusConflict,
		CodeInvalidSignature: http.StatusUnprocessableEntity,
		CodeInternal:         http.StatusInternalServerError,
		Code("unknown"):      http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), "code %s", code)
	}
}
