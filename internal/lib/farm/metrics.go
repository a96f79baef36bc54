package farm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promNumStakers = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "staker_count",
		Help:      "Number of accounts ever registered as stakers",
	})
	promActiveStakers = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "active_staker_count",
		Help:      "Number of stakers currently staking",
	})
	promTotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "staked_total",
		Help:      "Total stake token held in custody, in whole tokens",
	})
	promRewardAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "reward_available",
		Help:      "Reward token held by the farm, in whole tokens",
	})
	promRewardsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "farm",
		Name:      "rewards_issued_total",
		Help:      "Reward token issued to stakers, in whole tokens",
	})
	promIssuanceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "farm",
		Name:      "issuance_runs_total",
		Help:      "Reward issuance attempts by outcome",
	}, []string{"result"})
)
