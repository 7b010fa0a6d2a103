package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	collection "chronostamp/internal/collection/models"
	"chronostamp/internal/ownership"
	"chronostamp/pkg/domain"
	dErrors "chronostamp/pkg/domain-errors"
)

// Registry is the owner-gated factory that deploys collections and keeps the
// append-only list of their addresses.
type Registry struct {
	ownership.Ownable

	Address   common.Address
	CreatedAt time.Time
}

func NewRegistry(address, owner common.Address, now time.Time) (*Registry, error) {
	if domain.IsZeroAddress(address) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registry address cannot be zero")
	}
	o, err := ownership.New(owner)
	if err != nil {
		return nil, err
	}
	return &Registry{Ownable: o, Address: address, CreatedAt: now}, nil
}

// CreateBadgeRequest carries the configuration of a new collection.
type CreateBadgeRequest struct {
	Name          string
	Symbol        string
	BaseURI       string
	TrustedSigner common.Address
}

// Validate reports the first violation in the order name, symbol, base URI,
// signer. Only the empty string counts as empty; values are stored as given.
func (r CreateBadgeRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeEmptyName, "collection name cannot be empty")
	}
	if r.Symbol == "" {
		return dErrors.New(dErrors.CodeEmptySymbol, "collection symbol cannot be empty")
	}
	if r.BaseURI == "" {
		return dErrors.New(dErrors.CodeEmptyBaseURI, "base URI cannot be empty")
	}
	if domain.IsZeroAddress(r.TrustedSigner) {
		return dErrors.New(dErrors.CodeZeroSigner, "trusted signer cannot be the zero address")
	}
	return nil
}

// Config builds the collection configuration with the chosen owner.
func (r CreateBadgeRequest) Config(owner common.Address) collection.Config {
	return collection.Config{
		Name:          r.Name,
		Symbol:        r.Symbol,
		BaseURI:       r.BaseURI,
		TrustedSigner: r.TrustedSigner,
		Owner:         owner,
	}
}

// OwnerPolicy selects who owns a collection created through the registry.
type OwnerPolicy string

const (
	// OwnerPolicyCaller gives the new collection to the administrator who
	// created it.
	OwnerPolicyCaller OwnerPolicy = "caller"
	// OwnerPolicyRegistry gives it to the registry's own address.
	OwnerPolicyRegistry OwnerPolicy = "registry"
)

func ParseOwnerPolicy(s string) (OwnerPolicy, error) {
	switch p := OwnerPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", OwnerPolicyCaller:
		return OwnerPolicyCaller, nil
	case OwnerPolicyRegistry:
		return OwnerPolicyRegistry, nil
	default:
		return "", fmt.Errorf("unknown collection owner policy %q", s)
	}
}

// OwnerFor resolves the owner of a collection created by caller.
func (p OwnerPolicy) OwnerFor(registry, caller common.Address) common.Address {
	if p == OwnerPolicyRegistry {
		return registry
	}
	return caller
}

// Window clamps [offset, offset+limit) to a list of total entries. It returns
// an empty window when limit is zero or offset is past the end.
func Window(total, offset, limit uint64) (start, end uint64) {
	if limit == 0 || offset >= total {
		return 0, 0
	}
	end = total
	if limit < total-offset {
		end = offset + limit
	}
	return offset, end
}

// Page is one slice of the deployed list.
type Page struct {
	Offset      uint64
	Limit       uint64
	Total       uint64
	Collections []common.Address
}
