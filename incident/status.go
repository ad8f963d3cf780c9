package incident

// Status is the coarse investigation-state bucket assigned to every incident.
type Status string

const (
	StatusClosed      Status = "Closed"
	StatusConcluded   Status = "Concluded"
	StatusOngoing     Status = "Ongoing"
	StatusUnavailable Status = "Unavailable"
)

// CanonicalOrder is the fixed category order used for tie-breaking and for
// iterating status counts deterministically.
var CanonicalOrder = []Status{StatusClosed, StatusConcluded, StatusOngoing, StatusUnavailable}

// Outcome literals from the data.police.uk "last outcome category" taxonomy.
// The four sets are disjoint; should a literal ever appear in more than one,
// the lookup table is built so that Closed wins over Concluded, Concluded
// over Ongoing, and Ongoing over Unclear.
var (
	closedOutcomes = []string{
		"Investigation complete; no suspect identified",
		"Unable to prosecute suspect",
		"Formal action is not in the public interest",
		"Further investigation is not in the public interest",
		"Further action is not in the public interest",
	}
	concludedOutcomes = []string{
		"Local resolution",
		"Offender given a caution",
		"Offender given a drugs possession warning",
		"Offender given penalty notice",
		"Offender given absolute discharge",
		"Offender given conditional discharge",
		"Offender given community sentence",
		"Offender given suspended prison sentence",
		"Offender sent to prison",
		"Offender fined",
		"Offender ordered to pay compensation",
		"Offender deprived of property",
		"Offender otherwise dealt with",
		"Suspect charged as part of another case",
		"Defendant found not guilty",
		"Defendant sent to Crown Court",
		"Court case unable to proceed",
		"Court result unavailable",
	}
	ongoingOutcomes = []string{
		"Under investigation",
		"Awaiting court outcome",
		"Suspect charged",
		"Action to be taken by another organisation",
	}
	unclearOutcomes = []string{
		"Status update unavailable",
	}
)

// statusLookup is built once at init and read-only afterwards, so it is safe
// to share across handlers.
var statusLookup = buildStatusLookup()

func buildStatusLookup() map[string]Status {
	table := make(map[string]Status, len(closedOutcomes)+len(concludedOutcomes)+len(ongoingOutcomes)+len(unclearOutcomes))
	// Lowest priority first; later inserts overwrite on overlap.
	for _, literal := range unclearOutcomes {
		table[literal] = StatusUnavailable
	}
	for _, literal := range ongoingOutcomes {
		table[literal] = StatusOngoing
	}
	for _, literal := range concludedOutcomes {
		table[literal] = StatusConcluded
	}
	for _, literal := range closedOutcomes {
		table[literal] = StatusClosed
	}
	return table
}

// Classify maps free-text outcome wording to a Status. It is total: nil,
// empty, and unrecognised text all map to Unavailable.
func Classify(outcomeText *string) Status {
	if outcomeText == nil {
		return StatusUnavailable
	}
	if status, ok := statusLookup[*outcomeText]; ok {
		return status
	}
	return StatusUnavailable
}
