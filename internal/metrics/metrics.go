package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ViolationsDetected counts messages matched against the rule set
	ViolationsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweepmonk",
			Subsystem: "enforce",
			Name:      "violations_total",
			Help:      "Total number of rule violations detected",
		},
		[]string{"rule_kind"},
	)

	// Actions counts platform side effects by action and outcome
	Actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweepmonk",
			Subsystem: "enforce",
			Name:      "actions_total",
			Help:      "Total number of platform actions requested, by outcome",
		},
		[]string{"action", "outcome"},
	)

	// Verifications counts resolved new-member verifications by outcome
	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweepmonk",
			Subsystem: "verify",
			Name:      "verifications_total",
			Help:      "Total number of verifications resolved, by outcome",
		},
		[]string{"outcome"},
	)

	// DuplicateEvents counts events absorbed by the dedup window
	DuplicateEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sweepmonk",
			Subsystem: "enforce",
			Name:      "duplicate_events_total",
			Help:      "Total number of duplicate events ignored",
		},
	)
)

var registerOnce sync.Once

func init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ViolationsDetected, Actions, Verifications, DuplicateEvents)
	})
}

// Action outcome labels
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)
