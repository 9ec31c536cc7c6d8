package workout

import "time"

// SetInput is the user-entered result of one set.
type SetInput struct {
	Magnitude   *float64
	Repetitions int
	Note        string
}

// Transition is what Record did after completing a set.
type Transition string

const (
	// TransitionRest means the session rests before the next set of the
	// same step.
	TransitionRest Transition = "rest"
	// TransitionNextStep means the session moved to the next step and rests
	// before its first set.
	TransitionNextStep Transition = "next-step"
	// TransitionFinished means the last set of the last step was recorded.
	TransitionFinished Transition = "finished"
)

// Outcome describes the result of Record.
type Outcome struct {
	Transition  Transition `json:"transition"`
	RestSeconds int        `json:"restSeconds,omitempty"`
}

// Record completes the set at the cursor and applies the driving policy:
//
//   - last set of the last step: finish
//   - last set of any other step: advance to the next step and rest for the
//     rest configured on the step just left
//   - otherwise: rest for the rest configured on the current step
//
// All changes are applied to a copy and committed together; on error the
// session is unchanged.
func (s *Session) Record(now time.Time, in SetInput) (Outcome, error) {
	if s.Finished() {
		return Outcome{}, invalidOperation(s, "cannot record a set on a finished session")
	}
	if s.Phase != PhaseActive {
		return Outcome{}, invalidOperation(s, "sets can only be recorded in %s", PhaseActive)
	}
	if s.StepIndex >= len(s.Day.Steps) {
		return Outcome{}, invalidOperation(s, "step %d is outside the plan day", s.StepIndex)
	}

	next := s.Clone()
	if err := next.CompleteSubStep(now, in.Magnitude, in.Repetitions, in.Note); err != nil {
		return Outcome{}, err
	}

	step := next.Day.Steps[next.StepIndex]
	lastSub := next.SubStepIndex >= step.SubSteps-1
	lastStep := next.StepIndex >= len(next.Day.Steps)-1

	var out Outcome
	switch {
	case lastSub && lastStep:
		if err := next.Finish(now); err != nil {
			return Outcome{}, err
		}
		out.Transition = TransitionFinished

	case lastSub:
		rest := next.Day.restFor(next.StepIndex)
		if err := next.EnterRest(now, rest); err != nil {
			return Outcome{}, err
		}
		remaining := *next.RestRemainingSeconds
		if err := next.AdvanceStep(now); err != nil {
			return Outcome{}, err
		}
		// AdvanceStep reactivated the session; rest again for the step
		// just left so the commit lands on resting with the new cursor.
		if err := next.EnterRest(now, &remaining); err != nil {
			return Outcome{}, err
		}
		out.Transition = TransitionNextStep
		out.RestSeconds = remaining

	default:
		if err := next.EnterRest(now, next.Day.restFor(next.StepIndex)); err != nil {
			return Outcome{}, err
		}
		out.Transition = TransitionRest
		out.RestSeconds = *next.RestRemainingSeconds
	}

	*s = *next
	return out, nil
}

// SkipRest ends the current rest, whether it ran out or the user skipped
// it. After a set of the current step the cursor moves to the next set;
// after a step change the cursor already points at the new step's first
// set and only the phase changes.
func (s *Session) SkipRest(now time.Time) error {
	if s.Phase != PhaseResting {
		return invalidOperation(s, "not resting")
	}
	if s.completed(s.StepIndex, s.SubStepIndex) {
		return s.AdvanceSubStep(now)
	}
	return s.EndRest(now)
}
