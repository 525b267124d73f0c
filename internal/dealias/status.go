package dealias

import "strings"

// Status is the per-gate diagnostic bit set emitted by the unwrap sweep.
// Bits are only ever added while a profile is processed.
type Status uint8

const (
	// StatusNoInitialGuess: no velocity guess was available, the gate was
	// emitted as recorded.
	StatusNoInitialGuess Status = 1 << iota
	// StatusBoundaryReached: the required fold lies outside the extended
	// velocity axis, the gate was left unfolded.
	StatusBoundaryReached
	// StatusNearNyquist: the emitted spectrum still peaks next to a Nyquist
	// edge, aliasing remains plausible.
	StatusNearNyquist
	// StatusInconsistentPrevious: the emitted velocity jumps away from the
	// previous profile at the same gate.
	StatusInconsistentPrevious
)

var statusNames = []struct {
	bit  Status
	name string
}{
	{StatusNoInitialGuess, "no_initial_guess"},
	{StatusBoundaryReached, "boundary_reached"},
	{StatusNearNyquist, "near_nyquist"},
	{StatusInconsistentPrevious, "inconsistent_previous"},
}

// Has reports whether every bit of flag is set.
func (s Status) Has(flag Status) bool { return s&flag == flag && flag != 0 }

// With returns s with flag added.
func (s Status) With(flag Status) Status { return s | flag }

// Code returns the legacy numeric encoding 0-15 (bit 0 = no initial guess).
func (s Status) Code() int { return int(s & 0x0f) }

// StatusFromCode decodes the legacy numeric encoding. Bits above 3 are dropped.
func StatusFromCode(code int) Status { return Status(code) & 0x0f }

// String lists the set flags, "ok" when none is set.
func (s Status) String() string {
	var parts []string
	for _, sn := range statusNames {
		if s.Has(sn.bit) {
			parts = append(parts, sn.name)
		}
	}
	if len(parts) == 0 {
		return "ok"
	}
	return strings.Join(parts, "|")
}

// StatusFlags is the structured view of a Status.
type StatusFlags struct {
	NoInitialGuess       bool `json:"no_initial_guess"`
	BoundaryReached      bool `json:"boundary_reached"`
	NearNyquist          bool `json:"near_nyquist"`
	InconsistentPrevious bool `json:"inconsistent_previous"`
}

// Flags returns the structured view of s.
func (s Status) Flags() StatusFlags {
	return StatusFlags{
		NoInitialGuess:       s.Has(StatusNoInitialGuess),
		BoundaryReached:      s.Has(StatusBoundaryReached),
		NearNyquist:          s.Has(StatusNearNyquist),
		InconsistentPrevious: s.Has(StatusInconsistentPrevious),
	}
}

// AllStatusFlags lists the four flags in bit order.
func AllStatusFlags() []Status {
	return []Status{StatusNoInitialGuess, StatusBoundaryReached, StatusNearNyquist, StatusInconsistentPrevious}
}
