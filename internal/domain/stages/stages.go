package stages

import "strings"

// Stage is the coarse pipeline bucket a work-item state maps to. Every
// analyzer classifies states through one compiled Taxonomy so the done/
// removed/dev/QA boundaries cannot drift between metrics.
type Stage string

const (
	StageIntake    Stage = "intake"
	StageDev       Stage = "dev-in-progress"
	StageBlocked   Stage = "blocked"
	StageQAQueue   Stage = "qa-queue"
	StageQATesting Stage = "qa-testing"
	StageDone      Stage = "done"
	StageRemoved   Stage = "removed"
	StageUnknown   Stage = "unknown"
)

// Config lists raw state names per bucket. Empty lists fall back to the
// defaults below; the sets are workflow-specific and expected to drift, which
// is why they live in configuration rather than in analyzer code.
type Config struct {
	Intake    []string `yaml:"intake"`
	Dev       []string `yaml:"dev"`
	Blocked   []string `yaml:"blocked"`
	QAQueue   []string `yaml:"qaQueue"`
	QATesting []string `yaml:"qaTesting"`
	Done      []string `yaml:"done"`
	Removed   []string `yaml:"removed"`
	Reopened  []string `yaml:"reopened"`
}

var defaults = Config{
	Intake:    []string{"New", "Approved", "Committed"},
	Dev:       []string{"In Development", "On-Hold", "Shelved", "Branch Check-in"},
	Blocked:   []string{"On-Hold"},
	QAQueue:   []string{"Resolved", "Ready for QA"},
	QATesting: []string{"QA Testing"},
	Done:      []string{"Done", "Closed"},
	Removed:   []string{"Removed"},
	Reopened:  []string{"Re-opened", "Reopened"},
}

// Taxonomy is the compiled state-name mapping. Lookups are case-insensitive
// and whitespace-trimmed.
type Taxonomy struct {
	byState  map[string]Stage
	blocked  map[string]bool
	reopened map[string]bool
}

// New compiles a taxonomy from config, filling empty buckets from defaults.
// Later buckets win on duplicate state names, except that blocked states stay
// classified as dev (blocked is the on-hold subset of dev, not a seventh
// classification bucket for unknown states).
func New(cfg Config) Taxonomy {
	pick := func(v, def []string) []string {
		if len(v) > 0 {
			return v
		}
		return def
	}

	t := Taxonomy{
		byState:  make(map[string]Stage),
		blocked:  make(map[string]bool),
		reopened: make(map[string]bool),
	}
	add := func(states []string, stage Stage) {
		for _, s := range states {
			t.byState[norm(s)] = stage
		}
	}
	add(pick(cfg.Intake, defaults.Intake), StageIntake)
	add(pick(cfg.Dev, defaults.Dev), StageDev)
	add(pick(cfg.QAQueue, defaults.QAQueue), StageQAQueue)
	add(pick(cfg.QATesting, defaults.QATesting), StageQATesting)
	add(pick(cfg.Done, defaults.Done), StageDone)
	add(pick(cfg.Removed, defaults.Removed), StageRemoved)
	for _, s := range pick(cfg.Blocked, defaults.Blocked) {
		t.blocked[norm(s)] = true
	}
	for _, s := range pick(cfg.Reopened, defaults.Reopened) {
		t.reopened[norm(s)] = true
	}
	return t
}

// Default is the compiled ADO-flavored default workflow.
func Default() Taxonomy { return New(Config{}) }

// Classify maps a raw state name to its stage; unmapped states are StageUnknown.
func (t Taxonomy) Classify(state string) Stage {
	if s, ok := t.byState[norm(state)]; ok {
		return s
	}
	return StageUnknown
}

// Bucket is Classify with the blocked subset split out of dev, matching the
// six dashboard buckets.
func (t Taxonomy) Bucket(state string) Stage {
	if t.blocked[norm(state)] {
		return StageBlocked
	}
	return t.Classify(state)
}

func (t Taxonomy) IsDone(state string) bool    { return t.Classify(state) == StageDone }
func (t Taxonomy) IsRemoved(state string) bool { return t.Classify(state) == StageRemoved }

// IsActive reports whether a state still counts toward open scope: neither
// terminal-done nor terminal-removed.
func (t Taxonomy) IsActive(state string) bool {
	s := t.Classify(state)
	return s != StageDone && s != StageRemoved
}

// IsBlocked reports whether the state is in the on-hold subset of dev.
func (t Taxonomy) IsBlocked(state string) bool { return t.blocked[norm(state)] }

// IsReopened reports whether the state is a bug-workflow reopen marker.
func (t Taxonomy) IsReopened(state string) bool { return t.reopened[norm(state)] }

// IsLate reports whether a stage sits at or past the QA queue; rework is a
// transition out of a late stage back to an earlier one.
func IsLate(s Stage) bool {
	return s == StageQAQueue || s == StageQATesting || s == StageDone
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
