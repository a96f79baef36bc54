package deploy

import (
	"fmt"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/tokenfarm/internal/lib/farm"
	"github.com/TxnLab/tokenfarm/internal/lib/misc"
	"github.com/TxnLab/tokenfarm/internal/lib/store"
	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

// Deployment is a farm wired to its stake and reward token ledgers.
type Deployment struct {
	StakeToken  *token.Ledger
	RewardToken *token.Ledger
	Farm        *farm.Ledger
}

// Build applies a genesis, minting every allocation and the farm funding.
func Build(logger *slog.Logger, gen *Genesis) (*Deployment, error) {
	if err := gen.validate(); err != nil {
		return nil, err
	}
	owner, err := types.DecodeAddress(gen.Farm.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: farm owner: %v", ErrInvalidGenesis, err)
	}
	farmAddr := farm.AddressForFarm(gen.Farm.ID)

	stakeToken, err := buildToken(gen.StakeToken, farmAddr)
	if err != nil {
		return nil, err
	}
	rewardToken, err := buildToken(gen.RewardToken, farmAddr)
	if err != nil {
		return nil, err
	}
	ledger, err := farm.New(logger, gen.Farm.ID, owner, stakeToken, rewardToken)
	if err != nil {
		return nil, err
	}
	misc.Infof(logger, "deployed %s id:%d at %s, owner:%s, staking %s for %s", ledger.Name(), gen.Farm.ID, farmAddr,
		owner, stakeToken, rewardToken)
	return &Deployment{StakeToken: stakeToken, RewardToken: rewardToken, Farm: ledger}, nil
}

func buildToken(tg TokenGenesis, farmAddr types.Address) (*token.Ledger, error) {
	decimals := uint8(token.DefaultDecimals)
	if tg.Decimals != nil {
		decimals = *tg.Decimals
	}
	ledger := token.New(tg.Name, tg.Symbol, decimals)
	mint := func(account types.Address, amount string) error {
		value, err := token.ParseAmount(amount, decimals)
		if err != nil {
			return fmt.Errorf("%w: %s allocation to %s: %v", ErrInvalidGenesis, tg.Symbol, account, err)
		}
		return ledger.Mint(account, value)
	}
	for _, alloc := range tg.Allocations {
		account, err := types.DecodeAddress(alloc.Account)
		if err != nil {
			return nil, fmt.Errorf("%w: %s allocation account %q: %v", ErrInvalidGenesis, tg.Symbol, alloc.Account, err)
		}
		if err := mint(account, alloc.Amount); err != nil {
			return nil, err
		}
	}
	if tg.FarmFunding != "" {
		if err := mint(farmAddr, tg.FarmFunding); err != nil {
			return nil, err
		}
	}
	// genesis minting isn't revertible
	ledger.Commit()
	return ledger, nil
}

// FromState rebuilds a deployment from persisted state.
func FromState(logger *slog.Logger, state *store.State) (*Deployment, error) {
	stakeToken, err := token.FromSnapshot(state.StakeToken)
	if err != nil {
		return nil, fmt.Errorf("stake token: %w", err)
	}
	rewardToken, err := token.FromSnapshot(state.RewardToken)
	if err != nil {
		return nil, fmt.Errorf("reward token: %w", err)
	}
	ledger, err := farm.FromSnapshot(logger, state.Farm, stakeToken, rewardToken)
	if err != nil {
		return nil, err
	}
	return &Deployment{StakeToken: stakeToken, RewardToken: rewardToken, Farm: ledger}, nil
}

func (d *Deployment) State() *store.State {
	return &store.State{
		StakeToken:  d.StakeToken.Snapshot(),
		RewardToken: d.RewardToken.Snapshot(),
		Farm:        d.Farm.Snapshot(),
	}
}

// Token returns the stake or reward token by role name.
func (d *Deployment) Token(role string) (*token.Ledger, error) {
	switch role {
	case "stake":
		return d.StakeToken, nil
	case "reward":
		return d.RewardToken, nil
	}
	return nil, fmt.Errorf("unknown token:%s (must be stake or reward)", role)
}
