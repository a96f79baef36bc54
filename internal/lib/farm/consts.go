package farm

import (
	"errors"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Name is the static identifier every farm reports.
const Name = "Dapp Token Farm"

var (
	ErrZeroAmount          = errors.New("stake amount must be greater than 0")
	ErrNothingStaked       = errors.New("nothing staked")
	ErrUnauthorized        = errors.New("caller is not the farm owner")
	ErrInsufficientRewards = errors.New("reward balance insufficient for issuance")
	ErrBalanceOverflow     = errors.New("staking balance overflow")
	ErrInvalidOwner        = errors.New("farm owner must be set")
	ErrDuplicateStaker     = errors.New("duplicate staker in registry")
	ErrFarmStaker          = errors.New("the farm custody account can't stake")
)

// AddressForFarm returns the custody account for the farm with the given id.  Farms hold
// tokens the same way application accounts do - at an address derived from their id, with no
// private key.
func AddressForFarm(id uint64) types.Address {
	return crypto.GetApplicationAddress(id)
}
