// Package domain holds the value primitives shared by every module. Parsers
// here sit on trust boundaries: they validate once so the rest of the code can
// rely on well-formed values.
package domain

import (
	"crypto/rand"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	dErrors "chronostamp/pkg/domain-errors"
)

// NonceLength is the size in bytes of a voucher nonce.
const NonceLength = 32

// SignatureLength is the size of an r||s||v secp256k1 signature.
const SignatureLength = 65

// Nonce is a 32-byte value chosen by the issuer to be unique per voucher.
type Nonce [NonceLength]byte

// ParseNonce parses a 0x-prefixed, 64 hex digit nonce.
func ParseNonce(s string) (Nonce, error) {
	var n Nonce
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return n, dErrors.New(dErrors.CodeInvalidInput, "nonce must be 0x-prefixed hex")
	}
	if len(raw) != NonceLength {
		return n, dErrors.New(dErrors.CodeInvalidInput, "nonce must be 32 bytes")
	}
	copy(n[:], raw)
	return n, nil
}

// RandomNonce draws a nonce from crypto/rand.
func RandomNonce() (Nonce, error) {
	var n Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return n, err
	}
	return n, nil
}

func (n Nonce) Hex() string {
	return hexutil.Encode(n[:])
}

func (n Nonce) String() string {
	return n.Hex()
}

func (n Nonce) MarshalText() ([]byte, error) {
	return []byte(n.Hex()), nil
}

func (n *Nonce) UnmarshalText(text []byte) error {
	parsed, err := ParseNonce(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ParseAddress parses a hex address. The zero address is accepted here; the
// operations that forbid it report their own reason.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, dErrors.New(dErrors.CodeInvalidInput, "invalid address")
	}
	return common.HexToAddress(s), nil
}

// ParseSignature decodes a 0x-prefixed 65-byte signature.
func ParseSignature(s string) ([]byte, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "signature must be 0x-prefixed hex")
	}
	if len(raw) != SignatureLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "signature must be 65 bytes")
	}
	return raw, nil
}

// ParseTokenID parses a decimal token identifier. Zero is never minted but is a
// well-formed query.
func ParseTokenID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "token id must be a decimal integer")
	}
	return id, nil
}

// IsZeroAddress reports whether addr is the zero address.
func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
