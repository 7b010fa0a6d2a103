// Package ownership implements single-owner access control shared by the
// registry and every collection.
package ownership

import (
	"github.com/ethereum/go-ethereum/common"

	"chronostamp/pkg/domain"
	dErrors "chronostamp/pkg/domain-errors"
)

// Ownable guards owner-only actions. The zero value has no owner and rejects
// every caller.
type Ownable struct {
	owner common.Address
}

// Transfer records an ownership change for the OwnershipTransferred event.
type Transfer struct {
	Previous common.Address
	New      common.Address
}

// New returns an Ownable owned by owner, which must be non-zero.
func New(owner common.Address) (Ownable, error) {
	if domain.IsZeroAddress(owner) {
		return Ownable{}, dErrors.New(dErrors.CodeZeroOwner, "owner cannot be the zero address")
	}
	return Ownable{owner: owner}, nil
}

// Restore rebuilds an Ownable from persisted state without validation.
func Restore(owner common.Address) Ownable {
	return Ownable{owner: owner}
}

func (o Ownable) Owner() common.Address {
	return o.owner
}

// RequireOwner fails with CodeUnauthorized unless caller is the owner.
func (o Ownable) RequireOwner(caller common.Address) error {
	if domain.IsZeroAddress(o.owner) || caller != o.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the owner")
	}
	return nil
}

// TransferOwnership hands ownership to newOwner. Only the current owner may
// call it and newOwner must be non-zero.
func (o *Ownable) TransferOwnership(caller, newOwner common.Address) (Transfer, error) {
	if err := o.RequireOwner(caller); err != nil {
		return Transfer{}, err
	}
	if domain.IsZeroAddress(newOwner) {
		return Transfer{}, dErrors.New(dErrors.CodeZeroOwner, "new owner cannot be the zero address")
	}
	t := Transfer{Previous: o.owner, New: newOwner}
	o.owner = newOwner
	return t, nil
}
