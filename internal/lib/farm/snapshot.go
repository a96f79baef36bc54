package farm

import (
	"fmt"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
)

// Snapshot is the persisted form of a farm ledger.  Stakers are kept in registry order.
type Snapshot struct {
	ID      uint64        `codec:"id"`
	Owner   types.Address `codec:"own"`
	Stakers []StakerEntry `codec:"stk"`
}

type StakerEntry struct {
	Account   types.Address `codec:"acct"`
	Balance   string        `codec:"bal"`
	IsStaking bool          `codec:"on"`
}

func (l *Ledger) Snapshot() Snapshot {
	l.RLock()
	defer l.RUnlock()
	snap := Snapshot{ID: l.id, Owner: l.owner}
	for _, staker := range l.stakers {
		rec := l.records[staker]
		snap.Stakers = append(snap.Stakers, StakerEntry{Account: staker, Balance: rec.balance.Dec(), IsStaking: rec.isStaking})
	}
	return snap
}

// FromSnapshot rebuilds a farm ledger on top of the given tokens.
func FromSnapshot(logger *slog.Logger, snap Snapshot, stakeToken, rewardToken Token) (*Ledger, error) {
	l, err := New(logger, snap.ID, snap.Owner, stakeToken, rewardToken)
	if err != nil {
		return nil, err
	}
	for _, entry := range snap.Stakers {
		if _, dup := l.records[entry.Account]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStaker, entry.Account)
		}
		balance, err := uint256.FromDecimal(entry.Balance)
		if err != nil {
			return nil, fmt.Errorf("staking balance of %s: %w", entry.Account, err)
		}
		l.records[entry.Account] = &stakerRecord{balance: *balance, isStaking: entry.IsStaking}
		l.stakers = append(l.stakers, entry.Account)
	}
	l.updateMetrics()
	return l, nil
}
