package farm

import (
	"fmt"
	"slices"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/mailgun/holster/v4/syncutil"
)

const auditConcurrency = 20

type AuditReport struct {
	Stakers         int
	ActiveStakers   int
	TotalStaked     *uint256.Int
	Custody         *uint256.Int
	RewardAvailable *uint256.Int
	Problems        []string
}

func (r *AuditReport) OK() bool {
	return len(r.Problems) == 0
}

// Audit checks the ledger invariants: custody equals the sum of staking balances, the registry
// holds no duplicates, and every staker's flag agrees with their balance.
func (l *Ledger) Audit() *AuditReport {
	l.RLock()
	defer l.RUnlock()

	report := &AuditReport{
		Stakers:         len(l.stakers),
		TotalStaked:     l.totalStaked(),
		Custody:         l.stakeToken.BalanceOf(l.address),
		RewardAvailable: l.rewardToken.BalanceOf(l.address),
	}

	var (
		fanOut    = syncutil.NewFanOut(auditConcurrency)
		problemCh = make(chan string, 2*len(l.stakers)+1)
		seen      = make(map[types.Address]bool, len(l.stakers))
	)
	for _, staker := range l.stakers {
		if seen[staker] {
			problemCh <- fmt.Sprintf("staker %s registered more than once", staker)
			continue
		}
		seen[staker] = true
		if l.records[staker].isStaking {
			report.ActiveStakers++
		}
		fanOut.Run(func(val any) error {
			account := val.(types.Address)
			rec := l.records[account]
			if rec.isStaking == rec.balance.IsZero() {
				problemCh <- fmt.Sprintf("staker %s has staking flag %v with balance %s", account, rec.isStaking, l.formatStake(&rec.balance))
			}
			if account == l.address {
				problemCh <- fmt.Sprintf("farm custody account %s registered as a staker", account)
			}
			return nil
		}, staker)
	}
	if len(l.records) != len(seen) {
		problemCh <- fmt.Sprintf("%d staker records but %d registry entries", len(l.records), len(seen))
	}
	fanOut.Wait()
	close(problemCh)

	for problem := range problemCh {
		report.Problems = append(report.Problems, problem)
	}
	if !report.TotalStaked.Eq(report.Custody) {
		report.Problems = append(report.Problems, fmt.Sprintf("total staked %s does not match custody balance %s",
			l.formatStake(report.TotalStaked), l.formatStake(report.Custody)))
	}
	slices.Sort(report.Problems)
	return report
}
