package domain

// Outcome tags how a load cycle ended. Empty and failed both render as an
// empty list but carry different messages.
type Outcome string

const (
	OutcomeNone   Outcome = ""
	OutcomeData   Outcome = "data"
	OutcomeEmpty  Outcome = "empty"
	OutcomeFailed Outcome = "failed"
)

// OutcomeOf classifies a fetch result.
func OutcomeOf(quakes []Earthquake, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeFailed
	case len(quakes) == 0:
		return OutcomeEmpty
	default:
		return OutcomeData
	}
}
