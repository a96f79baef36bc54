package farm

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"

	"github.com/TxnLab/tokenfarm/internal/lib/misc"
	"github.com/TxnLab/tokenfarm/internal/lib/token"
)

// Token is the fungible token capability the farm consumes - once for the stake token and once
// for the reward token. 'from' in Transfer is the account whose balance is debited (the caller);
// spender in TransferFrom is the account consuming from's allowance.
type Token interface {
	Name() string
	Decimals() uint8
	BalanceOf(account types.Address) *uint256.Int
	Transfer(from, to types.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to types.Address, amount *uint256.Int) error
}

// Checkpointer is implemented by tokens that can roll back a group of transfers.  When both
// tokens implement it, every farm operation is all-or-nothing across them.
type Checkpointer interface {
	NewCheckpoint() int
	RevertTo(revision int) error
	Commit()
}

type StakerInfo struct {
	Account   types.Address
	Balance   *uint256.Int
	IsStaking bool
}

type Payout struct {
	Account types.Address
	Amount  *uint256.Int
}

// Issuance is the result of one reward issuance run.
type Issuance struct {
	Payouts []Payout
	Total   *uint256.Int
}

type stakerRecord struct {
	balance   uint256.Int
	isStaking bool
}

// Ledger is the staking ledger of a single farm.  It custodies stake token at its own address,
// tracks per-staker balances and an append-only registry of everyone who ever staked, and pays
// reward token out of its own reward balance when the owner issues rewards.
type Ledger struct {
	logger  *slog.Logger
	id      uint64
	address types.Address
	owner   types.Address

	stakeToken  Token
	rewardToken Token

	// operations hold the lock for their full duration, so they never interleave
	sync.RWMutex
	stakers []types.Address
	records map[types.Address]*stakerRecord
}

func New(logger *slog.Logger, id uint64, owner types.Address, stakeToken, rewardToken Token) (*Ledger, error) {
	if owner == types.ZeroAddress {
		return nil, ErrInvalidOwner
	}
	return &Ledger{
		logger:      logger,
		id:          id,
		address:     AddressForFarm(id),
		owner:       owner,
		stakeToken:  stakeToken,
		rewardToken: rewardToken,
		records:     map[types.Address]*stakerRecord{},
	}, nil
}

func (l *Ledger) Name() string           { return Name }
func (l *Ledger) ID() uint64             { return l.id }
func (l *Ledger) Address() types.Address { return l.address }
func (l *Ledger) Owner() types.Address   { return l.owner }
func (l *Ledger) StakeToken() Token      { return l.stakeToken }
func (l *Ledger) RewardToken() Token     { return l.rewardToken }

// Stake pulls amount of stake token from caller into farm custody and credits the caller.
// The caller must have approved the farm address for at least amount beforehand.
func (l *Ledger) Stake(caller types.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	if caller == l.address {
		return ErrFarmStaker
	}
	l.Lock()
	defer l.Unlock()

	rec, known := l.records[caller]
	var current uint256.Int
	if known {
		current = rec.balance
	}
	newBalance, overflow := new(uint256.Int).AddOverflow(&current, amount)
	if overflow {
		return ErrBalanceOverflow
	}

	err := l.atomically(func() error {
		return l.stakeToken.TransferFrom(l.address, caller, l.address, amount)
	})
	if err != nil {
		return fmt.Errorf("stake from %s failed: %w", caller, err)
	}

	// only append to the registry the first time we see this account
	if !known {
		rec = &stakerRecord{}
		l.records[caller] = rec
		l.stakers = append(l.stakers, caller)
	}
	rec.balance = *newBalance
	rec.isStaking = true

	misc.Infof(l.logger, "staked %s %s from %s, staking balance now %s", l.formatStake(amount),
		l.stakeToken.Name(), caller, l.formatStake(newBalance))
	l.updateMetrics()
	return nil
}

// Unstake returns the caller's entire staking balance.  There is no partial withdrawal.
func (l *Ledger) Unstake(caller types.Address) error {
	l.Lock()
	defer l.Unlock()

	rec, known := l.records[caller]
	if !known || rec.balance.IsZero() {
		return fmt.Errorf("%w for %s", ErrNothingStaked, caller)
	}
	amount := rec.balance.Clone()

	err := l.atomically(func() error {
		return l.stakeToken.Transfer(l.address, caller, amount)
	})
	if err != nil {
		return fmt.Errorf("unstake to %s failed: %w", caller, err)
	}
	rec.balance.Clear()
	rec.isStaking = false

	misc.Infof(l.logger, "unstaked %s %s to %s", l.formatStake(amount), l.stakeToken.Name(), caller)
	l.updateMetrics()
	return nil
}

// IssueRewards pays every staker, in registry order, reward token equal to their current staking
// balance.  Only the owner may call it.  The whole batch is applied or none of it is.  Calling it
// again pays again - there is no record of prior issuance.
func (l *Ledger) IssueRewards(caller types.Address) (*Issuance, error) {
	if caller != l.owner {
		promIssuanceRuns.WithLabelValues("unauthorized").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	l.Lock()
	defer l.Unlock()

	issuance := &Issuance{Total: new(uint256.Int)}
	for _, staker := range l.stakers {
		rec := l.records[staker]
		if rec.balance.IsZero() {
			continue
		}
		issuance.Payouts = append(issuance.Payouts, Payout{Account: staker, Amount: rec.balance.Clone()})
		issuance.Total.Add(issuance.Total, &rec.balance)
	}

	available := l.rewardToken.BalanceOf(l.address)
	if available.Lt(issuance.Total) {
		promIssuanceRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: need %s %s, farm holds %s", ErrInsufficientRewards,
			l.formatReward(issuance.Total), l.rewardToken.Name(), l.formatReward(available))
	}

	err := l.atomically(func() error {
		for _, payout := range issuance.Payouts {
			if err := l.rewardToken.Transfer(l.address, payout.Account, payout.Amount); err != nil {
				return fmt.Errorf("reward transfer to %s failed: %w", payout.Account, err)
			}
		}
		return nil
	})
	if err != nil {
		promIssuanceRuns.WithLabelValues("failed").Inc()
		return nil, err
	}

	promIssuanceRuns.WithLabelValues("success").Inc()
	promRewardsIssued.Add(wholeTokens(issuance.Total, l.rewardToken.Decimals()))
	misc.Infof(l.logger, "issued %s %s to %d stakers", l.formatReward(issuance.Total), l.rewardToken.Name(), len(issuance.Payouts))
	l.updateMetrics()
	return issuance, nil
}

func (l *Ledger) StakingBalance(account types.Address) *uint256.Int {
	l.RLock()
	defer l.RUnlock()
	if rec, found := l.records[account]; found {
		return rec.balance.Clone()
	}
	return new(uint256.Int)
}

func (l *Ledger) IsStaking(account types.Address) bool {
	l.RLock()
	defer l.RUnlock()
	if rec, found := l.records[account]; found {
		return rec.isStaking
	}
	return false
}

// Stakers returns every registered staker in registry (first stake) order.
func (l *Ledger) Stakers() []StakerInfo {
	l.RLock()
	defer l.RUnlock()
	retStakers := make([]StakerInfo, 0, len(l.stakers))
	for _, staker := range l.stakers {
		rec := l.records[staker]
		retStakers = append(retStakers, StakerInfo{Account: staker, Balance: rec.balance.Clone(), IsStaking: rec.isStaking})
	}
	return retStakers
}

func (l *Ledger) TotalStaked() *uint256.Int {
	l.RLock()
	defer l.RUnlock()
	return l.totalStaked()
}

func (l *Ledger) totalStaked() *uint256.Int {
	total := new(uint256.Int)
	for _, rec := range l.records {
		total.Add(total, &rec.balance)
	}
	return total
}

// atomically runs fn inside checkpoints on both tokens, reverting them if fn fails.  When the
// checkpoint is the outermost one, the token journals are dropped on success.
func (l *Ledger) atomically(fn func() error) error {
	type mark struct {
		cp  Checkpointer
		rev int
	}
	var marks []mark
	for _, tok := range []Token{l.stakeToken, l.rewardToken} {
		if cp, ok := tok.(Checkpointer); ok {
			marks = append(marks, mark{cp: cp, rev: cp.NewCheckpoint()})
		}
	}
	if err := fn(); err != nil {
		for i := len(marks) - 1; i >= 0; i-- {
			if revertErr := marks[i].cp.RevertTo(marks[i].rev); revertErr != nil {
				misc.Errorf(l.logger, "unable to revert token state: %v", revertErr)
			}
		}
		return err
	}
	for _, m := range marks {
		if m.rev == 0 {
			m.cp.Commit()
		}
	}
	return nil
}

// updateMetrics must be called w/ the lock held.
func (l *Ledger) updateMetrics() {
	var active int
	for _, rec := range l.records {
		if rec.isStaking {
			active++
		}
	}
	promNumStakers.Set(float64(len(l.stakers)))
	promActiveStakers.Set(float64(active))
	promTotalStaked.Set(wholeTokens(l.totalStaked(), l.stakeToken.Decimals()))
	promRewardAvailable.Set(wholeTokens(l.rewardToken.BalanceOf(l.address), l.rewardToken.Decimals()))
}

func (l *Ledger) formatStake(amount *uint256.Int) string {
	return token.FormatAmount(amount, l.stakeToken.Decimals())
}

func (l *Ledger) formatReward(amount *uint256.Int) string {
	return token.FormatAmount(amount, l.rewardToken.Decimals())
}

func wholeTokens(amount *uint256.Int, decimals uint8) float64 {
	val, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount.ToBig()),
		new(big.Float).SetInt(token.Units(decimals).ToBig()),
	).Float64()
	return val
}
