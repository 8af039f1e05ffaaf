// Package statusmap translates the compact status codes written to plans,
// events and snapshots into semantic lifecycle states.
package statusmap

// Code is a compact marker for a lifecycle transition.
type Code string

const (
	PlanDrafted           Code = "→PC"
	PlanRevised           Code = "→PR"
	NeedsRevision         Code = "→NR"
	PlanAccepted          Code = "→PA"
	RedComplete           Code = "→RC"
	GreenComplete         Code = "→GC"
	RefactorTestsComplete Code = "→RTC"
	RefactorImplComplete  Code = "→RIC"
	Timeout               Code = "→TO"
	Exception             Code = "→EX"
	Blocked               Code = "→BL"

	// Outcome markers recorded when a phase contradicts its expectation.
	UnexpectedPass Code = "unexpected_pass"
	UnexpectedFail Code = "unexpected_fail"
)

// DesignNotFound is the result code of a plan request whose design is absent.
const DesignNotFound Code = "DESIGN_NOT_FOUND"

var semantic = map[Code]string{
	PlanDrafted:           "planDrafted",
	PlanRevised:           "planRevised",
	NeedsRevision:         "needsRevision",
	PlanAccepted:          "planAccepted",
	RedComplete:           "redComplete",
	GreenComplete:         "greenComplete",
	RefactorTestsComplete: "refactorTestsComplete",
	RefactorImplComplete:  "refactorImplComplete",
	Timeout:               "timeout",
	Exception:             "exception",
	Blocked:               "blocked",
}

// order fixes the listing order of Codes.
var order = []Code{
	PlanDrafted, PlanRevised, NeedsRevision, PlanAccepted,
	RedComplete, GreenComplete, RefactorTestsComplete, RefactorImplComplete,
	Timeout, Exception, Blocked,
}

// Map returns the semantic state for code. Unknown codes map to themselves.
func Map(code string) string {
	if s, ok := semantic[Code(code)]; ok {
		return s
	}
	return code
}

// Known reports whether code has a semantic translation.
func Known(code string) bool {
	_, ok := semantic[Code(code)]
	return ok
}

// Codes returns every translatable code in a stable order.
func Codes() []Code {
	out := make([]Code, len(order))
	copy(out, order)
	return out
}

// String implements fmt.Stringer.
func (c Code) String() string { return string(c) }
