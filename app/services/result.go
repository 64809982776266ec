package services

// Outcome tags what a soft-failing operation actually did
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeWarning  Outcome = "warning"   // applied, with warnings worth surfacing
	OutcomeNotFound Outcome = "not_found" // target id unknown, nothing changed
	OutcomeSkipped  Outcome = "skipped"   // nothing to do, nothing changed
)

// Result is returned by operations whose expected edge cases are reported
// instead of raised.
type Result struct {
	Outcome  Outcome  `json:"outcome"`
	Message  string   `json:"message,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func applied(warnings []string) Result {
	if len(warnings) > 0 {
		return Result{Outcome: OutcomeWarning, Warnings: warnings}
	}
	return Result{Outcome: OutcomeApplied}
}

func notFound(message string) Result {
	return Result{Outcome: OutcomeNotFound, Message: message}
}

func skipped(message string) Result {
	return Result{Outcome: OutcomeSkipped, Message: message}
}

// Changed reports whether the operation modified state
func (r Result) Changed() bool {
	return r.Outcome == OutcomeApplied || r.Outcome == OutcomeWarning
}
