package trip

// ConflictCategory classifies a feasibility violation.
type ConflictCategory string

const (
	ConflictBudget       ConflictCategory = "budget"
	ConflictTimeWindow   ConflictCategory = "time_window"
	ConflictInventory    ConflictCategory = "inventory"
	ConflictReachability ConflictCategory = "reachability"
	ConflictMustInclude  ConflictCategory = "must_include"
	ConflictMustExclude  ConflictCategory = "must_exclude"
	ConflictLedger       ConflictCategory = "ledger"
)

// ConflictSeverity grades how hard a conflict blocks acceptance.
type ConflictSeverity string

const (
	// SeverityRisk marks an advisory finding: the plan remains feasible
	// but carries uncertainty (e.g., an unknown transit path).
	SeverityRisk ConflictSeverity = "risk"

	SeverityMinor    ConflictSeverity = "minor"
	SeverityMajor    ConflictSeverity = "major"
	SeverityBlocking ConflictSeverity = "blocking"
)

// RepairAction names the suggested fix attached to a conflict.
type RepairAction string

const (
	RepairShiftStart RepairAction = "shift_start"
	RepairSwapOffer  RepairAction = "swap_offer"
	RepairDropItem   RepairAction = "drop_item"
	RepairAddItem    RepairAction = "add_item"
	RepairNone       RepairAction = "none"
)

// RepairHint is the machine-usable suggestion consumed by the assembly
// stage on the next feedback pass.
type RepairHint struct {
	Action RepairAction `json:"action" yaml:"action"`

	// ShiftMinutes applies when Action is shift_start.
	ShiftMinutes int `json:"shift_minutes,omitempty" yaml:"shift_minutes,omitempty"`

	// TargetName names the item or offer the repair applies to.
	TargetName string `json:"target_name,omitempty" yaml:"target_name,omitempty"`
}

// ConflictRecord is one structured feasibility violation. A candidate with
// an empty conflict list is feasible; hard conflicts carry severities
// above SeverityRisk.
type ConflictRecord struct {
	Category    ConflictCategory `json:"category" yaml:"category"`
	Description string           `json:"description" yaml:"description"`
	Severity    ConflictSeverity `json:"severity" yaml:"severity"`

	// DayIndex and ItemIndex identify the affected item; both are -1 for
	// candidate-level conflicts such as budget overruns.
	DayIndex  int `json:"day_index" yaml:"day_index"`
	ItemIndex int `json:"item_index" yaml:"item_index"`

	Repair RepairHint `json:"repair" yaml:"repair"`
}

// IsHard reports whether the conflict blocks feasibility, as opposed to
// a risk annotation that is surfaced but tolerated.
func (c ConflictRecord) IsHard() bool {
	return c.Severity != SeverityRisk
}

// HardConflicts filters a conflict list down to the blocking entries.
func HardConflicts(conflicts []ConflictRecord) []ConflictRecord {
	var hard []ConflictRecord
	for _, c := range conflicts {
		if c.IsHard() {
			hard = append(hard, c)
		}
	}
	return hard
}
