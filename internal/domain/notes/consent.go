package notes

// Tally is the consent picture of a session at one point in time.
type Tally struct {
	Required     int  `json:"total"`
	Accepted     int  `json:"yes"`
	Declined     int  `json:"no"`
	AllConsented bool `json:"allConsented"`
	AnyDeclined  bool `json:"anyDeclined"`
}

// ComputeTally derives the tally from the roster and each actor's latest
// decision. Required counts active participants only; a decline from any
// actor, active or not, is counted.
func ComputeTally(participants []Participant, latest map[string]bool) Tally {
	var tally Tally
	for _, p := range participants {
		if !p.Active() {
			continue
		}
		tally.Required++
		if consent, ok := latest[p.ActorKey]; ok && consent {
			tally.Accepted++
		}
	}
	for _, consent := range latest {
		if !consent {
			tally.Declined++
		}
	}

	tally.AnyDeclined = tally.Declined > 0
	tally.AllConsented = tally.Required > 0 && tally.Accepted == tally.Required && !tally.AnyDeclined
	return tally
}

// LatestConsents folds an ordered event log into the current decision per
// actor. Events must be sorted oldest first.
func LatestConsents(events []ConsentEvent) map[string]bool {
	latest := make(map[string]bool, len(events))
	for _, event := range events {
		latest[event.ActorKey] = event.Consent
	}
	return latest
}
