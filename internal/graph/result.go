package graph

import (
	"time"

	"github.com/itinera-ai/itinera/internal/blackboard"
)

// TerminationReason explains why a run ended.
type TerminationReason string

const (
	// ReasonAccepted means the decision stage accepted a candidate.
	ReasonAccepted TerminationReason = "accepted"

	// ReasonBudgetExhausted means feedback loop budgets ran out and the
	// best available candidate was taken instead.
	ReasonBudgetExhausted TerminationReason = "budget_exhausted"

	// ReasonWallClock means the global wall-clock budget elapsed.
	ReasonWallClock TerminationReason = "wall_clock"

	// ReasonCancelled means the caller cancelled the run.
	ReasonCancelled TerminationReason = "cancelled"
)

// StageStatus is the scheduler's view of one node.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// StageRecord summarizes all invocations of one stage during a run.
type StageRecord struct {
	Name      string        `json:"name"`
	Status    StageStatus   `json:"status"`
	Runs      int           `json:"runs"`
	Timeouts  int           `json:"timeouts"`
	TotalTime time.Duration `json:"total_time"`
}

// RunResult is the outcome of a full graph run.
type RunResult struct {
	// Final is the blackboard snapshot at termination.
	Final *blackboard.Snapshot `json:"-"`

	Reason TerminationReason `json:"reason"`

	// Degraded marks runs that ended without an explicit accept: the
	// returned candidate is best-effort.
	Degraded bool `json:"degraded"`

	// Accepted is the accepted (or best-available) candidate value from
	// the blackboard; nil when no candidate was produced at all.
	Accepted any `json:"-"`

	Stages    map[string]*StageRecord     `json:"stages"`
	Decisions []blackboard.DecisionRecord `json:"decisions"`
	Duration  time.Duration               `json:"duration"`
}
