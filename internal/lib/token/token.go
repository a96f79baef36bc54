package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
)

// DefaultDecimals matches the precision of the reference stake and reward tokens.
const DefaultDecimals = 18

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address not allowed")
	ErrSupplyOverflow        = errors.New("total supply overflow")
	ErrInvalidRevision       = errors.New("invalid checkpoint revision")
)

// Ledger is an in-process fungible token ledger with standard transfer/approve/transferFrom
// semantics. All balance changes are journaled so a caller can group several transfers and
// revert them as a unit via NewCheckpoint/RevertTo.
type Ledger struct {
	name     string
	symbol   string
	decimals uint8

	sync.RWMutex
	totalSupply uint256.Int
	balances    map[types.Address]*uint256.Int
	allowances  map[types.Address]map[types.Address]*uint256.Int
	journal     []journalEntry
}

func New(name, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		balances:   map[types.Address]*uint256.Int{},
		allowances: map[types.Address]map[types.Address]*uint256.Int{},
	}
}

func (l *Ledger) Name() string    { return l.name }
func (l *Ledger) Symbol() string  { return l.symbol }
func (l *Ledger) Decimals() uint8 { return l.decimals }

func (l *Ledger) String() string {
	return fmt.Sprintf("%s (%s, %d decimals)", l.name, l.symbol, l.decimals)
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.RLock()
	defer l.RUnlock()
	return l.totalSupply.Clone()
}

// BalanceOf returns a copy of the balance held by account (zero if never seen).
func (l *Ledger) BalanceOf(account types.Address) *uint256.Int {
	l.RLock()
	defer l.RUnlock()
	return l.balanceOf(account).Clone()
}

func (l *Ledger) Allowance(owner, spender types.Address) *uint256.Int {
	l.RLock()
	defer l.RUnlock()
	return l.allowance(owner, spender).Clone()
}

// Approve sets (overwrites) the amount spender may move out of owner's balance.
func (l *Ledger) Approve(owner, spender types.Address, amount *uint256.Int) error {
	if owner == types.ZeroAddress || spender == types.ZeroAddress {
		return ErrZeroAddress
	}
	l.Lock()
	defer l.Unlock()
	l.setAllowance(owner, spender, amount.Clone())
	return nil
}

// Transfer moves amount from sender's own balance to recipient.
func (l *Ledger) Transfer(from, to types.Address, amount *uint256.Int) error {
	l.Lock()
	defer l.Unlock()
	return l.transfer(from, to, amount)
}

// TransferFrom moves amount from 'from' to 'to' on behalf of spender, consuming spender's
// allowance. The allowance is checked before the balance. An allowance of the maximum value is
// treated as unlimited and never decremented.
func (l *Ledger) TransferFrom(spender, from, to types.Address, amount *uint256.Int) error {
	l.Lock()
	defer l.Unlock()

	allowed := l.allowance(from, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: %s allowed %s of %s, needs %s", ErrInsufficientAllowance,
			spender, FormatAmount(allowed, l.decimals), from, FormatAmount(amount, l.decimals))
	}
	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	if !isUnlimited(allowed) {
		l.setAllowance(from, spender, new(uint256.Int).Sub(allowed, amount))
	}
	return nil
}

// Mint creates amount new tokens in account. Used only when applying genesis allocations.
func (l *Ledger) Mint(account types.Address, amount *uint256.Int) error {
	if account == types.ZeroAddress {
		return ErrZeroAddress
	}
	l.Lock()
	defer l.Unlock()
	newSupply, overflow := new(uint256.Int).AddOverflow(&l.totalSupply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	l.journal = append(l.journal, journalEntry{kind: supplyChange, prev: l.totalSupply.Clone()})
	l.totalSupply = *newSupply
	l.setBalance(account, new(uint256.Int).Add(l.balanceOf(account), amount))
	return nil
}

func (l *Ledger) transfer(from, to types.Address, amount *uint256.Int) error {
	if from == types.ZeroAddress || to == types.ZeroAddress {
		return ErrZeroAddress
	}
	fromBal := l.balanceOf(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientBalance,
			from, FormatAmount(fromBal, l.decimals), l.symbol, FormatAmount(amount, l.decimals))
	}
	if from == to {
		return nil
	}
	l.setBalance(from, new(uint256.Int).Sub(fromBal, amount))
	// can't overflow - sum of all balances is bounded by total supply
	l.setBalance(to, new(uint256.Int).Add(l.balanceOf(to), amount))
	return nil
}

func (l *Ledger) balanceOf(account types.Address) *uint256.Int {
	if bal, found := l.balances[account]; found {
		return bal
	}
	return new(uint256.Int)
}

func (l *Ledger) allowance(owner, spender types.Address) *uint256.Int {
	if amount, found := l.allowances[owner][spender]; found {
		return amount
	}
	return new(uint256.Int)
}

func (l *Ledger) setBalance(account types.Address, amount *uint256.Int) {
	var prev *uint256.Int
	if bal, found := l.balances[account]; found {
		prev = bal
	}
	l.journal = append(l.journal, journalEntry{kind: balanceChange, account: account, prev: prev})
	if amount.IsZero() {
		delete(l.balances, account)
		return
	}
	l.balances[account] = amount
}

func (l *Ledger) setAllowance(owner, spender types.Address, amount *uint256.Int) {
	var prev *uint256.Int
	if existing, found := l.allowances[owner][spender]; found {
		prev = existing
	}
	l.journal = append(l.journal, journalEntry{kind: allowanceChange, account: owner, spender: spender, prev: prev})
	l.putAllowance(owner, spender, amount)
}

func (l *Ledger) putAllowance(owner, spender types.Address, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		if spenders, found := l.allowances[owner]; found {
			delete(spenders, spender)
			if len(spenders) == 0 {
				delete(l.allowances, owner)
			}
		}
		return
	}
	spenders, found := l.allowances[owner]
	if !found {
		spenders = map[types.Address]*uint256.Int{}
		l.allowances[owner] = spenders
	}
	spenders[spender] = amount
}

func isUnlimited(amount *uint256.Int) bool {
	return amount.Eq(MaxAmount())
}

// MaxAmount returns the largest representable amount - used as an 'unlimited' allowance.
func MaxAmount() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}
