package token

import (
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
)

type changeKind uint8

const (
	balanceChange changeKind = iota
	allowanceChange
	supplyChange
)

// journalEntry records the value that was replaced so it can be put back on revert.
// A nil prev means the key didn't exist.
type journalEntry struct {
	kind    changeKind
	account types.Address
	spender types.Address
	prev    *uint256.Int
}

// NewCheckpoint marks the current state, returning the revision to pass to RevertTo.
func (l *Ledger) NewCheckpoint() int {
	l.Lock()
	defer l.Unlock()
	return len(l.journal)
}

// RevertTo undoes every change made since the checkpoint with the given revision.
func (l *Ledger) RevertTo(revision int) error {
	l.Lock()
	defer l.Unlock()
	if revision < 0 || revision > len(l.journal) {
		return ErrInvalidRevision
	}
	for i := len(l.journal) - 1; i >= revision; i-- {
		entry := l.journal[i]
		switch entry.kind {
		case balanceChange:
			if entry.prev == nil {
				delete(l.balances, entry.account)
			} else {
				l.balances[entry.account] = entry.prev
			}
		case allowanceChange:
			l.putAllowance(entry.account, entry.spender, entry.prev)
		case supplyChange:
			l.totalSupply = *entry.prev
		}
	}
	l.journal = l.journal[:revision]
	return nil
}

// Commit discards the journal. Outstanding revisions become invalid.
func (l *Ledger) Commit() {
	l.Lock()
	defer l.Unlock()
	l.journal = l.journal[:0]
}
