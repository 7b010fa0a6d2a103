// Package voucher implements the claim-voucher cryptography: the digest a
// trusted issuer signs for a (recipient, nonce) pair, Ethereum signed-message
// hashing, and secp256k1 signer recovery.
//
// The digest is keccak256(recipient ‖ nonce) over the tightly packed 20-byte
// address and 32-byte nonce, and signatures are produced over the EIP-191
// personal-message hash of that digest. A voucher is therefore bound to exactly
// one recipient: submitting it from another address recovers a different
// signer.
package voucher

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"chronostamp/pkg/domain"
)

// ErrMalformedSignature is returned for signatures that cannot be recovered.
var ErrMalformedSignature = errors.New("malformed signature")

// Voucher is an issued (nonce, signature) pair for one recipient.
type Voucher struct {
	Recipient common.Address
	Nonce     domain.Nonce
	Signature []byte
}

// Digest returns keccak256(abi.encodePacked(recipient, nonce)).
func Digest(recipient common.Address, nonce domain.Nonce) common.Hash {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(recipient.Bytes())
	_, _ = h.Write(nonce[:])
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// SignedMessageHash applies the "\x19Ethereum Signed Message:\n<len>" prefix.
func SignedMessageHash(message []byte) common.Hash {
	return common.BytesToHash(accounts.TextHash(message))
}

// RecoverSigner returns the address whose key produced sig over the signed
// message hash of digest.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	return RecoverMessageSigner(digest.Bytes(), sig)
}

// RecoverMessageSigner recovers the signer of an EIP-191 personal message.
// It accepts v in {0,1,27,28} and rejects high-s (malleable) signatures.
func RecoverMessageSigner(message []byte, sig []byte) (common.Address, error) {
	if len(sig) != domain.SignatureLength {
		return common.Address{}, ErrMalformedSignature
	}
	normalized := make([]byte, domain.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(normalized[64], r, s, true) {
		return common.Address{}, ErrMalformedSignature
	}

	pub, err := crypto.SigToPub(SignedMessageHash(message).Bytes(), normalized)
	if err != nil {
		return common.Address{}, ErrMalformedSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether sig is trustedSigner's voucher for (recipient, nonce).
func Verify(trustedSigner, recipient common.Address, nonce domain.Nonce, sig []byte) bool {
	signer, err := RecoverSigner(Digest(recipient, nonce), sig)
	if err != nil {
		return false
	}
	return signer == trustedSigner
}

// Sign produces the issuer signature for (recipient, nonce) with v in {27,28},
// matching what wallet signMessage implementations emit.
func Sign(key *ecdsa.PrivateKey, recipient common.Address, nonce domain.Nonce) ([]byte, error) {
	return SignMessage(key, Digest(recipient, nonce).Bytes())
}

// SignMessage signs an EIP-191 personal message.
func SignMessage(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(SignedMessageHash(message).Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// Issue draws a fresh nonce and signs it for recipient.
func Issue(key *ecdsa.PrivateKey, recipient common.Address) (Voucher, error) {
	nonce, err := domain.RandomNonce()
	if err != nil {
		return Voucher{}, err
	}
	sig, err := Sign(key, recipient, nonce)
	if err != nil {
		return Voucher{}, err
	}
	return Voucher{Recipient: recipient, Nonce: nonce, Signature: sig}, nil
}
