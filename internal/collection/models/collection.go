package models

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"chronostamp/internal/ownership"
	"chronostamp/pkg/domain"
	dErrors "chronostamp/pkg/domain-errors"
)

// FirstTokenID is the ID minted by the first successful claim.
const FirstTokenID uint64 = 1

// Config is the immutable configuration a collection is deployed with.
type Config struct {
	Name          string
	Symbol        string
	BaseURI       string
	TrustedSigner common.Address
	Owner         common.Address
}

// Validate reports the first violated constraint, checked in the order
// name, symbol, base URI, signer, owner.
func (c Config) Validate() error {
	if c.Name == "" {
		return dErrors.New(dErrors.CodeEmptyName, "collection name cannot be empty")
	}
	if c.Symbol == "" {
		return dErrors.New(dErrors.CodeEmptySymbol, "collection symbol cannot be empty")
	}
	if c.BaseURI == "" {
		return dErrors.New(dErrors.CodeEmptyBaseURI, "base URI cannot be empty")
	}
	if domain.IsZeroAddress(c.TrustedSigner) {
		return dErrors.New(dErrors.CodeZeroSigner, "trusted signer cannot be the zero address")
	}
	if domain.IsZeroAddress(c.Owner) {
		return dErrors.New(dErrors.CodeZeroOwner, "owner cannot be the zero address")
	}
	return nil
}

// Collection is one ClaimAuthority instance. Name, Symbol, BaseURI and
// TrustedSigner never change after construction; the owner changes only
// through TransferOwnership.
type Collection struct {
	ownership.Ownable

	Address       common.Address
	Deployer      common.Address
	Name          string
	Symbol        string
	BaseURI       string
	TrustedSigner common.Address
	NextTokenID   uint64
	CreatedAt     time.Time
}

// NewCollection validates cfg and returns a collection with no tokens minted.
func NewCollection(address, deployer common.Address, cfg Config, now time.Time) (*Collection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if domain.IsZeroAddress(address) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "collection address cannot be zero")
	}
	owner, err := ownership.New(cfg.Owner)
	if err != nil {
		return nil, err
	}
	return &Collection{
		Ownable:       owner,
		Address:       address,
		Deployer:      deployer,
		Name:          cfg.Name,
		Symbol:        cfg.Symbol,
		BaseURI:       cfg.BaseURI,
		TrustedSigner: cfg.TrustedSigner,
		NextTokenID:   FirstTokenID,
		CreatedAt:     now,
	}, nil
}

// TotalSupply is the number of tokens minted so far.
func (c *Collection) TotalSupply() uint64 {
	return c.NextTokenID - FirstTokenID
}

// Exists reports whether tokenID has been minted.
func (c *Collection) Exists(tokenID uint64) bool {
	return tokenID >= FirstTokenID && tokenID < c.NextTokenID
}

// TokenURI composes the metadata URI for tokenID. It does not check existence.
func (c *Collection) TokenURI(tokenID uint64) string {
	return c.BaseURI + "/" + strconv.FormatUint(tokenID, 10)
}

// Token is a minted badge.
type Token struct {
	Collection common.Address
	ID         uint64
	Holder     common.Address
	URI        string
}

// Claim is the result of a successful claim.
type Claim struct {
	Collection common.Address
	Holder     common.Address
	TokenID    uint64
	Nonce      domain.Nonce
	TokenURI   string
	ClaimedAt  time.Time
}
