package workout

import "golang.org/x/text/unicode/norm"

// Day is the plan day a session is driven by.
//
// A snapshot of the day is stored with the session so the driving policy
// keeps working offline and across restarts even if the plan changes
// remotely in the meantime.
type Day struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Steps []Step `json:"steps"`
}

// Step is one exercise of a plan day.
type Step struct {
	Name string `json:"name"`

	// CatalogID links the step to an exercise-catalog item. Steps without
	// one are tracked but never forwarded in the session summary.
	CatalogID *string `json:"catalogId,omitempty"`

	// SubSteps is the number of sets.
	SubSteps int `json:"sets"`

	// RestSeconds is the rest after each set. Nil means DefaultRestSeconds.
	RestSeconds *int `json:"restSeconds,omitempty"`

	TargetReps string `json:"targetReps,omitempty"`
}

// Validate checks that the day can drive a session.
func (d Day) Validate() error {
	if len(d.Steps) == 0 {
		return invalidPlan("day %q has no steps", d.ID)
	}
	for i, st := range d.Steps {
		if st.SubSteps < 1 {
			return invalidPlan("day %q step %d (%s) has %d sets, need at least 1", d.ID, i, st.Name, st.SubSteps)
		}
		if st.RestSeconds != nil && *st.RestSeconds < 0 {
			return invalidPlan("day %q step %d (%s) has negative rest", d.ID, i, st.Name)
		}
	}
	return nil
}

// restFor returns the configured rest of step i, or nil when absent.
func (d Day) restFor(i int) *int {
	if i < 0 || i >= len(d.Steps) {
		return nil
	}
	return d.Steps[i].RestSeconds
}

// Normalize returns a copy of d with NFC-normalized names so that the same
// exercise typed on different keyboards aggregates identically.
func (d Day) Normalize() Day {
	out := Day{ID: d.ID, Name: norm.NFC.String(d.Name), Steps: make([]Step, len(d.Steps))}
	for i, st := range d.Steps {
		st.Name = norm.NFC.String(st.Name)
		out.Steps[i] = st
	}
	return out
}
