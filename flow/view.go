package flow

import (
	"fmt"

	"HealthBot/model"
)

// View is the state the presentation layer renders.
type View struct {
	CurrentStepIndex int
	TotalSteps       int
	StepName         string
	StepTitle        string
	Draft            model.Draft
	FieldErrors      model.FieldErrors
	SubmissionError  string
	IsSubmitting     bool
	IsSubmitted      bool
}

// Progress is the step indicator: Now is 1-based.
type Progress struct {
	Now   int
	Max   int
	Label string
}

func (v View) Progress() Progress {
	now := v.CurrentStepIndex + 1
	return Progress{
		Now:   now,
		Max:   v.TotalSteps,
		Label: fmt.Sprintf("Step %d of %d", now, v.TotalSteps),
	}
}

func (v View) IsFirstStep() bool { return v.CurrentStepIndex == 0 }

func (v View) IsLastStep() bool { return v.CurrentStepIndex == v.TotalSteps-1 }
