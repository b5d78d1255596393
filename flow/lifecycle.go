package flow

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
)

const (
	phaseEditing    = "editing"
	phaseSubmitting = "submitting"
	phaseSubmitted  = "submitted"

	eventSubmit = "submit"
	eventReject = "reject"
	eventAccept = "accept"
)

// newLifecycle tracks whether a submission is in flight. Only one submit can
// leave editing at a time and submitted has no way out.
func newLifecycle(log zerolog.Logger) *fsm.FSM {
	return fsm.NewFSM(
		phaseEditing,
		fsm.Events{
			{Name: eventSubmit, Src: []string{phaseEditing}, Dst: phaseSubmitting},
			{Name: eventReject, Src: []string{phaseSubmitting}, Dst: phaseEditing},
			{Name: eventAccept, Src: []string{phaseSubmitting}, Dst: phaseSubmitted},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug().Str("from", e.Src).Str("to", e.Dst).Msg("signup phase changed")
			},
		},
	)
}
