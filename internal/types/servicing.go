package types

import "errors"

// ServicingType is a tagged variant derived by diffing the requested spec
// against the installed spec (spec.md §4.1).
type ServicingType string

const (
	ServicingNone          ServicingType = "none"
	ServicingCleanInstall  ServicingType = "clean-install"
	ServicingABUpdate      ServicingType = "ab-update"
	ServicingRuntimeUpdate ServicingType = "runtime-update"
)

// ServicingState is a tagged variant. Transitions only ever happen through
// the edges named in spec.md §4.1; internal/engine is the sole writer.
type ServicingState string

const (
	StateNotProvisioned          ServicingState = "not-provisioned"
	StateCleanInstallStaged      ServicingState = "clean-install-staged"
	StateCleanInstallFinalized   ServicingState = "clean-install-finalized"
	StateProvisioned             ServicingState = "provisioned"
	StateABUpdateStaged          ServicingState = "ab-update-staged"
	StateABUpdateFinalized       ServicingState = "ab-update-finalized"
	StateABUpdateHealthCheckFail ServicingState = "ab-update-health-check-failed"
	StateABUpdateRollbackFailed  ServicingState = "ab-update-rollback-failed"
)

// transitionTable enumerates every legal (state, verb) -> state edge from
// spec.md §4.1, so ValidTransition can reject anything else outright —
// invariant 4 of spec.md §8: "arbitrary states are unreachable".
var transitionTable = map[ServicingState]map[string]ServicingState{
	StateNotProvisioned: {
		"stage": StateCleanInstallStaged,
	},
	StateCleanInstallStaged: {
		"finalize": StateCleanInstallFinalized,
		"abort":    StateNotProvisioned,
	},
	StateCleanInstallFinalized: {
		"boot-ok":   StateProvisioned,
		"boot-fail": StateNotProvisioned,
	},
	StateProvisioned: {
		"stage": StateABUpdateStaged,
	},
	StateABUpdateStaged: {
		"finalize": StateABUpdateFinalized,
		"abort":    StateProvisioned,
	},
	StateABUpdateFinalized: {
		"commit-ok":        StateProvisioned,
		"health-check-fail": StateABUpdateHealthCheckFail,
	},
	StateABUpdateHealthCheckFail: {
		"rollback-ok":   StateProvisioned,
		"rollback-fail": StateABUpdateRollbackFailed,
	},
}

// ValidTransition reports whether (from, event) is a legal edge and, if so,
// returns the resulting state.
func ValidTransition(from ServicingState, event string) (ServicingState, bool) {
	edges, ok := transitionTable[from]
	if !ok {
		return "", false
	}
	to, ok := edges[event]
	return to, ok
}

// AbActiveVolume is a tagged variant naming which A/B member is active.
type AbActiveVolume string

const (
	VolumeA AbActiveVolume = "volume-a"
	VolumeB AbActiveVolume = "volume-b"
)

func (v AbActiveVolume) Other() AbActiveVolume {
	if v == VolumeA {
		return VolumeB
	}
	return VolumeA
}

// HostStatus is the persisted observed state (spec.md §3).
type HostStatus struct {
	ServicingType   ServicingType          `yaml:"servicingType"`
	ServicingState  ServicingState         `yaml:"servicingState"`
	AbActiveVolume  AbActiveVolume         `yaml:"abActiveVolume,omitempty"`
	PartitionPaths  map[string]string      `yaml:"partitionPaths,omitempty"`
	InstalledSpec   *HostConfiguration     `yaml:"installedSpec,omitempty"`
	// PendingSpec holds the requested spec from Stage through the boot that
	// follows Finalize; the commit controller promotes it to InstalledSpec
	// on success or discards it on rollback.
	PendingSpec     *HostConfiguration     `yaml:"pendingSpec,omitempty"`
	LastError       *ServicingErrorRecord  `yaml:"lastError,omitempty"`
	ServicingIndex  int                    `yaml:"servicingIndex"`
	OsIndex         int                    `yaml:"osIndex"`
	RollbackChain   []HostStatusSnapshot   `yaml:"rollbackChain,omitempty"`
	// PreviousRuntimeSpec holds the installed spec a runtime-update
	// overwrote, one level deep, so `rollback --runtime` can undo only the
	// most recent runtime-update (spec.md §4.8 manual rollback API).
	PreviousRuntimeSpec *HostConfiguration `yaml:"previousRuntimeSpec,omitempty"`
}

// RollbackKind is a tagged variant naming what a manual rollback would
// undo, the answer `rollback --check` reports (spec.md §4.8).
type RollbackKind string

const (
	RollbackNone    RollbackKind = "none"
	RollbackAB      RollbackKind = "ab"
	RollbackRuntime RollbackKind = "runtime"
)

// ServicingErrorRecord is the serializable projection of a ServicingError,
// since the error interface itself isn't a YAML-round-trippable shape.
type ServicingErrorRecord struct {
	Kind      ErrorKind `yaml:"kind"`
	Subsystem string    `yaml:"subsystem"`
	Message   string    `yaml:"message"`
}

func RecordOf(err error) *ServicingErrorRecord {
	if err == nil {
		return nil
	}
	return &ServicingErrorRecord{Kind: KindOf(err), Subsystem: subsystemOf(err), Message: err.Error()}
}

func subsystemOf(err error) string {
	var se *ServicingError
	if errors.As(err, &se) {
		return se.Subsystem
	}
	return "unknown"
}

// HostStatusSnapshot is one entry of the bounded rollback chain.
type HostStatusSnapshot struct {
	ServicingIndex int            `yaml:"servicingIndex"`
	AbActiveVolume AbActiveVolume `yaml:"abActiveVolume,omitempty"`
	Spec           *HostConfiguration `yaml:"spec,omitempty"`
	FinalizedAt    string         `yaml:"finalizedAt"`
}

// PushRollback appends the current status as a new rollback-chain head,
// pruning the oldest entry once the chain exceeds its bound.
func (s *HostStatus) PushRollback(snap HostStatusSnapshot, maxLen int) {
	s.RollbackChain = append([]HostStatusSnapshot{snap}, s.RollbackChain...)
	if len(s.RollbackChain) > maxLen {
		s.RollbackChain = s.RollbackChain[:maxLen]
	}
}
