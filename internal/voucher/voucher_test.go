package voucher

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"chronostamp/pkg/domain"
)

type VoucherSuite struct {
	suite.Suite
	issuer   *ecdsa.PrivateKey
	stranger *ecdsa.PrivateKey
	user1    common.Address
	user2    common.Address
}

func TestVoucherSuite(t *testing.T) {
	suite.Run(t, new(VoucherSuite))
}

func (s *VoucherSuite) SetupTest() {
	var err error
	s.issuer, err = crypto.GenerateKey()
	s.Require().NoError(err)
	s.stranger, err = crypto.GenerateKey()
	s.Require().NoError(err)
	s.user1 = common.HexToAddress("0x1111111111111111111111111111111111111111")
	s.user2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
}

func (s *VoucherSuite) issuerAddress() common.Address {
	return crypto.PubkeyToAddress(s.issuer.PublicKey)
}

func (s *VoucherSuite) TestDigest() {
	s.Run("differs per recipient", func() {
		nonce, err := domain.RandomNonce()
		s.Require().NoError(err)
		s.NotEqual(Digest(s.user1, nonce), Digest(s.user2, nonce))
	})

	s.Run("differs per nonce", func() {
		var a, b domain.Nonce
		b[31] = 1
		s.NotEqual(Digest(s.user1, a), Digest(s.user1, b))
	})
}

func (s *VoucherSuite) TestRecoverSigner() {
	s.Run("recovers the issuer for its own voucher", func() {
		v, err := Issue(s.issuer, s.user1)
		s.Require().NoError(err)
		s.True(v.Signature[64] == 27 || v.Signature[64] == 28, "v is wallet-style 27/28")

		signer, err := RecoverSigner(Digest(s.user1, v.Nonce), v.Signature)
		s.Require().NoError(err)
		s.Equal(s.issuerAddress(), signer)
		s.True(Verify(s.issuerAddress(), s.user1, v.Nonce, v.Signature))
	})

	s.Run("accepts raw 0/1 recovery ids", func() {
		v, err := Issue(s.issuer, s.user1)
		s.Require().NoError(err)
		raw := append([]byte(nil), v.Signature...)
		raw[64] -= 27
		s.True(Verify(s.issuerAddress(), s.user1, v.Nonce, raw))
	})

	s.Run("voucher for user1 does not verify for user2", func() {
		v, err := Issue(s.issuer, s.user1)
		s.Require().NoError(err)
		s.False(Verify(s.issuerAddress(), s.user2, v.Nonce, v.Signature))
	})

	s.Run("foreign key does not verify", func() {
		nonce, err := domain.RandomNonce()
		s.Require().NoError(err)
		sig, err := Sign(s.stranger, s.user1, nonce)
		s.Require().NoError(err)
		s.False(Verify(s.issuerAddress(), s.user1, nonce, sig))
	})

	s.Run("wrong length is malformed", func() {
		_, err := RecoverSigner(Digest(s.user1, domain.Nonce{}), make([]byte, 64))
		s.ErrorIs(err, ErrMalformedSignature)
	})

	s.Run("zero signature is malformed", func() {
		_, err := RecoverSigner(Digest(s.user1, domain.Nonce{}), make([]byte, 65))
		s.ErrorIs(err, ErrMalformedSignature)
	})

	s.Run("invalid recovery id is malformed", func() {
		v, err := Issue(s.issuer, s.user1)
		s.Require().NoError(err)
		v.Signature[64] = 5
		_, err = RecoverSigner(Digest(s.user1, v.Nonce), v.Signature)
		s.ErrorIs(err, ErrMalformedSignature)
	})
}

func TestSignMessageRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	msg := []byte("ChronoStamp login\nNonce: abc")

	sig, err := SignMessage(key, msg)
	require.NoError(t, err)
	signer, err := RecoverMessageSigner(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)
}

// Voucher produced off-chain by
// wallet.signMessage(getBytes(solidityPackedKeccak256(["address","bytes32"], [recipient, nonce])))
// with the well-known development key below.
func TestWalletVoucherVector(t *testing.T) {
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	issuer := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	recipient := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	nonce, err := domain.ParseNonce("0x000000000000000000000000000000000000000000000000000000000000002a")
	require.NoError(t, err)
	sig := hexutil.MustDecode("0x2190d399f2f2ad1d12b85570e9ef9e3808d4d29c0c5a6fd74f70edb2aafd171b" +
		"712a628dd9674f6507db3b56ef303a9f40edf54061554df2287ee461cb362c5c1c")

	require.Equal(t, issuer, crypto.PubkeyToAddress(key.PublicKey))
	assert.Equal(t,
		common.HexToHash("0x215a48e7d2e15d9f4b7eb276f5bc9019be958918e1257f317e331950f268cb2a"),
		Digest(recipient, nonce))

	assert.True(t, Verify(issuer, recipient, nonce, sig))
	signer, err := RecoverSigner(Digest(recipient, nonce), sig)
	require.NoError(t, err)
	assert.Equal(t, issuer, signer)

	other := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	assert.False(t, Verify(issuer, other, nonce, sig), "voucher is bound to its recipient")

	ours, err := Sign(key, recipient, nonce)
	require.NoError(t, err)
	assert.Equal(t, sig, ours, "deterministic signing matches the wallet output")
}
