package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/syncq"
	"github.com/roach88/liftsync/internal/tracker"
	"github.com/roach88/liftsync/internal/workout"
)

// sessionView is the printed state of a session.
type sessionView struct {
	Session *workout.Session `json:"session"`
	Now     time.Time        `json:"-"`
}

func (v sessionView) Text() string {
	s := v.Session
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (plan %s, day %s)\n", s.ID, s.PlanID, s.PlanDayID)

	phase := string(s.Phase)
	if s.Phase == workout.PhaseResting && s.RestRemainingSeconds != nil {
		phase = fmt.Sprintf("%s (%ds left)", phase, *s.RestRemainingSeconds)
	}
	if s.Paused() {
		phase += ", paused"
	}
	fmt.Fprintf(&b, "Phase:     %s\n", phase)

	if !s.Finished() && s.StepIndex < len(s.Day.Steps) {
		st := s.Day.Steps[s.StepIndex]
		fmt.Fprintf(&b, "Exercise:  %s, set %d/%d\n", st.Name, s.SubStepIndex+1, st.SubSteps)
	}
	fmt.Fprintf(&b, "Completed: %d sets\n", len(s.CompletedItems))
	fmt.Fprintf(&b, "Elapsed:   %s\n", time.Duration(s.TotalElapsedSeconds(v.Now))*time.Second)
	return b.String()
}

type recordView struct {
	tracker.RecordResult
	Now time.Time `json:"-"`
}

func (v recordView) Text() string {
	if v.Finished != nil {
		return finishView{v.Finished}.Text()
	}
	var b strings.Builder
	switch v.Outcome.Transition {
	case workout.TransitionRest:
		fmt.Fprintf(&b, "Set recorded. Rest %ds.\n", v.Outcome.RestSeconds)
	case workout.TransitionNextStep:
		fmt.Fprintf(&b, "Exercise done. Rest %ds before the next one.\n", v.Outcome.RestSeconds)
	}
	b.WriteString(sessionView{Session: v.Session, Now: v.Now}.Text())
	return b.String()
}

type finishView struct {
	*tracker.FinishResult
}

func (v finishView) Text() string {
	var b strings.Builder
	sum := v.Summary
	fmt.Fprintf(&b, "Session %s finished in %d min.\n", sum.SessionID, sum.DurationMinutes)

	w := tabwriter.NewWriter(&b, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "EXERCISE\tSETS\tTOP WEIGHT\tREPS")
	for _, e := range sum.Entries {
		load := "-"
		if e.Load != nil {
			load = fmt.Sprintf("%g", *e.Load)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Name, e.Sets, load, e.Reps)
	}
	w.Flush()

	for _, pr := range v.PersonalRecords {
		fmt.Fprintf(&b, "New personal record: %s %g x %d\n", pr.ExerciseID, pr.Weight, pr.Reps)
	}
	return b.String()
}

type actionsView []model.PendingAction

func (v actionsView) Text() string {
	if len(v) == 0 {
		return "No pending actions.\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ACTION ID\tOPERATION\tENTITY\tENTITY ID\tRETRIES\tENQUEUED AT")
	for _, a := range v {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			a.ID, a.Operation, a.Entity, a.EntityID, a.RetryCount, a.EnqueuedAt.Format(time.RFC3339))
	}
	w.Flush()
	return b.String()
}

type deadLettersView []model.DeadLetterAction

func (v deadLettersView) Text() string {
	if len(v) == 0 {
		return "No actions found in the dead-letter queue.\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ACTION ID\tOPERATION\tENTITY\tENTITY ID\tFAILED AT\tERROR")
	for _, d := range v {
		msg := d.Error
		if len(msg) > 50 {
			msg = msg[:47] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Operation, d.Entity, d.EntityID, d.FailedAt.Format(time.RFC3339), msg)
	}
	w.Flush()
	return b.String()
}

type reportView struct {
	Report syncq.Report `json:"report"`
	Error  string       `json:"error,omitempty"`
}

func (v reportView) Text() string {
	r := v.Report
	if r.Skipped {
		return "Sync already in progress, skipped.\n"
	}
	var b strings.Builder
	for _, p := range r.Pulled {
		fmt.Fprintf(&b, "Pulled %s: %d records (%d evicted)\n", p.Collection, p.Records, p.Evicted)
	}
	fmt.Fprintf(&b, "Synced %d of %d actions", r.Succeeded, r.Attempted)
	if r.Failed > 0 {
		fmt.Fprintf(&b, ", %d will be retried", r.Failed)
	}
	if r.DeadLettered > 0 {
		fmt.Fprintf(&b, ", %d dead-lettered", r.DeadLettered)
	}
	b.WriteString(".\n")
	if v.Error != "" {
		fmt.Fprintf(&b, "Errors: %s\n", v.Error)
	}
	return b.String()
}
