package models

import (
	"math"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "chronostamp/pkg/domain-errors"
)

func TestWindow(t *testing.T) {
	cases := []struct {
		name                 string
		total, offset, limit uint64
		start, end           uint64
	}{
		{"empty list", 0, 0, 10, 0, 0},
		{"zero limit", 5, 0, 0, 0, 0},
		{"offset at end", 5, 5, 1, 0, 0},
		{"offset past end", 5, 9, 1, 0, 0},
		{"full page", 5, 0, 5, 0, 5},
		{"clamped tail", 5, 3, 10, 3, 5},
		{"middle", 5, 1, 2, 1, 3},
		{"huge limit does not overflow", 5, 2, math.MaxUint64, 2, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := Window(tc.total, tc.offset, tc.limit)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}

func TestCreateBadgeRequestValidate(t *testing.T) {
	signer := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	valid := CreateBadgeRequest{Name: "N", Symbol: "S", BaseURI: "ipfs://x", TrustedSigner: signer}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		req  CreateBadgeRequest
		code dErrors.Code
	}{
		{"empty name and zero signer reports name", CreateBadgeRequest{Symbol: "S", BaseURI: "u"}, dErrors.CodeEmptyName},
		{"empty symbol", CreateBadgeRequest{Name: "N", BaseURI: "u", TrustedSigner: signer}, dErrors.CodeEmptySymbol},
		{"empty base uri and zero signer reports uri", CreateBadgeRequest{Name: "N", Symbol: "S"}, dErrors.CodeEmptyBaseURI},
		{"zero signer", CreateBadgeRequest{Name: "N", Symbol: "S", BaseURI: "u"}, dErrors.CodeZeroSigner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, dErrors.HasCode(tc.req.Validate(), tc.code))
		})
	}

	t.Run("whitespace is not empty and is kept verbatim", func(t *testing.T) {
		req := CreateBadgeRequest{Name: " ", Symbol: " S ", BaseURI: "u ", TrustedSigner: signer}
		require.NoError(t, req.Validate())
		cfg := req.Config(signer)
		assert.Equal(t, " ", cfg.Name)
		assert.Equal(t, " S ", cfg.Symbol)
		assert.Equal(t, "u ", cfg.BaseURI)
	})
}

func TestOwnerPolicy(t *testing.T) {
	registry := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	caller := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	p, err := ParseOwnerPolicy("")
	require.NoError(t, err)
	assert.Equal(t, caller, p.OwnerFor(registry, caller))

	p, err = ParseOwnerPolicy("Registry")
	require.NoError(t, err)
	assert.Equal(t, registry, p.OwnerFor(registry, caller))

	_, err = ParseOwnerPolicy("nobody")
	assert.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(common.HexToAddress("0x01"), common.Address{}, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeZeroOwner))

	_, err = NewRegistry(common.Address{}, common.HexToAddress("0x01"), time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
