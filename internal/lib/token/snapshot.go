package token

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
)

// Snapshot is the persisted form of a Ledger. Amounts are kept as decimal strings of base units.
type Snapshot struct {
	Name       string           `codec:"name"`
	Symbol     string           `codec:"sym"`
	Decimals   uint8            `codec:"dec"`
	Balances   []BalanceEntry   `codec:"bal"`
	Allowances []AllowanceEntry `codec:"alw"`
}

type BalanceEntry struct {
	Account types.Address `codec:"acct"`
	Amount  string        `codec:"amt"`
}

type AllowanceEntry struct {
	Owner   types.Address `codec:"own"`
	Spender types.Address `codec:"spn"`
	Amount  string        `codec:"amt"`
}

// Snapshot returns the ledger's current state, sorted by account so the encoding is stable.
func (l *Ledger) Snapshot() Snapshot {
	l.RLock()
	defer l.RUnlock()

	snap := Snapshot{Name: l.name, Symbol: l.symbol, Decimals: l.decimals}
	for account, bal := range l.balances {
		snap.Balances = append(snap.Balances, BalanceEntry{Account: account, Amount: bal.Dec()})
	}
	slices.SortFunc(snap.Balances, func(a, b BalanceEntry) int {
		return bytes.Compare(a.Account[:], b.Account[:])
	})
	for owner, spenders := range l.allowances {
		for spender, amount := range spenders {
			snap.Allowances = append(snap.Allowances, AllowanceEntry{Owner: owner, Spender: spender, Amount: amount.Dec()})
		}
	}
	slices.SortFunc(snap.Allowances, func(a, b AllowanceEntry) int {
		if c := bytes.Compare(a.Owner[:], b.Owner[:]); c != 0 {
			return c
		}
		return bytes.Compare(a.Spender[:], b.Spender[:])
	})
	return snap
}

// FromSnapshot rebuilds a ledger. Total supply is recomputed as the sum of all balances.
func FromSnapshot(snap Snapshot) (*Ledger, error) {
	l := New(snap.Name, snap.Symbol, snap.Decimals)
	for _, entry := range snap.Balances {
		amount, err := uint256.FromDecimal(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance of %s in %s: %w", entry.Account, snap.Name, err)
		}
		if _, dup := l.balances[entry.Account]; dup {
			return nil, fmt.Errorf("duplicate balance entry for %s in %s", entry.Account, snap.Name)
		}
		supply, overflow := new(uint256.Int).AddOverflow(&l.totalSupply, amount)
		if overflow {
			return nil, ErrSupplyOverflow
		}
		l.totalSupply = *supply
		if !amount.IsZero() {
			l.balances[entry.Account] = amount
		}
	}
	for _, entry := range snap.Allowances {
		amount, err := uint256.FromDecimal(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("allowance of %s for %s in %s: %w", entry.Owner, entry.Spender, snap.Name, err)
		}
		l.putAllowance(entry.Owner, entry.Spender, amount)
	}
	return l, nil
}
