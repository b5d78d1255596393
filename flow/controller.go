package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"HealthBot/model"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
)

var (
	ErrNoSteps    = errors.New("flow needs at least one step")
	ErrNilSchema  = errors.New("flow step has no schema")
	ErrNilGateway = errors.New("flow has no submission gateway")
	ErrNilDraft   = errors.New("flow has no draft")
)

// DefaultSubmissionError is shown when a gateway fails without a message.
const DefaultSubmissionError = "Something went wrong. Let's try that again."

// Controller owns the cursor, the draft and the error state of one signup.
//
// Callers may use it from several goroutines. The lock is not held while the
// gateway runs, so edits and retreats stay possible during a submission, but a
// second Finish is refused until the first one resolves.
type Controller struct {
	mu sync.Mutex

	steps   []Step
	gateway Gateway
	hooks   Hooks
	log     zerolog.Logger

	draft           model.Draft
	cursor          int
	fieldErrors     model.FieldErrors
	submissionError string
	phase           *fsm.FSM

	observers    map[int]func(View)
	nextObserver int
}

type Option func(*Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func WithHooks(h Hooks) Option {
	return func(c *Controller) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithCursor starts the flow at step i, clamped to the step range. It is used
// when a stored session is resumed.
func WithCursor(i int) Option {
	return func(c *Controller) { c.cursor = i }
}

// WithObserver subscribes fn before the controller is returned.
func WithObserver(fn func(View)) Option {
	return func(c *Controller) { c.subscribe(fn) }
}

// New checks every collaborator up front; there is no permissive fallback.
func New(steps []Step, draft model.Draft, gateway Gateway, opts ...Option) (*Controller, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	for _, s := range steps {
		if s.Schema == nil {
			return nil, ErrNilSchema
		}
	}
	if gateway == nil {
		return nil, ErrNilGateway
	}
	if draft == nil {
		return nil, ErrNilDraft
	}

	c := &Controller{
		steps:       append([]Step(nil), steps...),
		gateway:     gateway,
		hooks:       noHooks{},
		log:         zerolog.Nop(),
		draft:       draft,
		fieldErrors: model.FieldErrors{},
		observers:   map[int]func(View){},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cursor = clamp(c.cursor, 0, len(c.steps)-1)
	c.phase = newLifecycle(c.log)
	return c, nil
}

func (c *Controller) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *Controller) TotalSteps() int {
	return len(c.steps)
}

// Steps returns the step definitions in order.
func (c *Controller) Steps() []Step {
	return append([]Step(nil), c.steps...)
}

// UpdateField stores value without validating it.
func (c *Controller) UpdateField(name, value string) {
	c.mu.Lock()
	if c.phase.Is(phaseSubmitted) {
		c.mu.Unlock()
		return
	}
	c.draft.SetField(name, value)
	c.mu.Unlock()
	c.notify()
}

// ToggleCondition flips one entry of the condition set. It does nothing for
// drafts without one.
func (c *Controller) ToggleCondition(name string) {
	c.mu.Lock()
	t, ok := c.draft.(model.ConditionToggler)
	if !ok || c.phase.Is(phaseSubmitted) {
		c.mu.Unlock()
		return
	}
	t.ToggleCondition(name)
	c.mu.Unlock()
	c.notify()
}

// Advance validates the current step only. On success the errors are cleared
// and the cursor moves forward unless it is already on the last step. The
// result tells whether the cursor moved.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	if c.phase.Is(phaseSubmitted) {
		c.mu.Unlock()
		return false
	}
	step := c.steps[c.cursor]
	errs := step.Schema.Validate(c.draft)
	if len(errs) > 0 {
		c.fieldErrors = copyErrors(errs)
		c.mu.Unlock()
		c.log.Debug().Str("step", step.Name).Int("errors", len(errs)).Msg("step rejected")
		c.hooks.ValidationFailed(step.Name, errs)
		c.notify()
		return false
	}

	c.fieldErrors = model.FieldErrors{}
	moved := false
	if c.cursor < len(c.steps)-1 {
		c.cursor++
		moved = true
	}
	c.mu.Unlock()

	if moved {
		c.hooks.Advanced(step.Name)
	}
	c.notify()
	return moved
}

// Retreat always succeeds and keeps whatever was entered.
func (c *Controller) Retreat() {
	c.mu.Lock()
	if c.phase.Is(phaseSubmitted) {
		c.mu.Unlock()
		return
	}
	c.fieldErrors = model.FieldErrors{}
	from := c.steps[c.cursor].Name
	moved := c.cursor > 0
	if moved {
		c.cursor--
	}
	c.mu.Unlock()

	if moved {
		c.hooks.Retreated(from)
	}
	c.notify()
}

// Finish re-validates the last step and submits a copy of the draft. It
// returns true only when the gateway accepted it. Calling it anywhere but the
// last step, after success, or while another Finish is outstanding does
// nothing.
func (c *Controller) Finish(ctx context.Context) bool {
	c.mu.Lock()
	if c.cursor != len(c.steps)-1 || !c.phase.Can(eventSubmit) {
		c.mu.Unlock()
		return false
	}
	step := c.steps[c.cursor]
	if errs := step.Schema.Validate(c.draft); len(errs) > 0 {
		c.fieldErrors = copyErrors(errs)
		c.mu.Unlock()
		c.hooks.ValidationFailed(step.Name, errs)
		c.notify()
		return false
	}
	if err := c.phase.Event(ctx, eventSubmit); err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("could not start submission")
		return false
	}
	c.fieldErrors = model.FieldErrors{}
	c.submissionError = ""
	draft := c.draft.Clone()
	c.mu.Unlock()
	c.notify()

	started := time.Now()
	res := c.gateway.Submit(ctx, draft)
	took := time.Since(started)

	// the outcome must be recorded even if ctx was cancelled meanwhile
	ctx = context.WithoutCancel(ctx)
	c.mu.Lock()
	if res.Success {
		if err := c.phase.Event(ctx, eventAccept); err != nil {
			c.log.Error().Err(err).Msg("could not mark signup submitted")
		}
	} else {
		c.submissionError = res.Error
		if c.submissionError == "" {
			c.submissionError = DefaultSubmissionError
		}
		if err := c.phase.Event(ctx, eventReject); err != nil {
			c.log.Error().Err(err).Msg("could not reopen signup after failed submission")
		}
	}
	c.mu.Unlock()

	c.log.Info().Bool("success", res.Success).Dur("took", took).Msg("signup submitted")
	c.hooks.Submitted(res.Success, took)
	c.notify()
	return res.Success
}

// View returns a snapshot that is safe to keep.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe calls fn with a fresh View after every change until cancel is
// called.
func (c *Controller) Subscribe(fn func(View)) (cancel func()) {
	c.mu.Lock()
	id := c.subscribe(fn)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) subscribe(fn func(View)) int {
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	return id
}

func (c *Controller) viewLocked() View {
	step := c.steps[c.cursor]
	return View{
		CurrentStepIndex: c.cursor,
		TotalSteps:       len(c.steps),
		StepName:         step.Name,
		StepTitle:        step.Title,
		Draft:            c.draft.Clone(),
		FieldErrors:      copyErrors(c.fieldErrors),
		SubmissionError:  c.submissionError,
		IsSubmitting:     c.phase.Is(phaseSubmitting),
		IsSubmitted:      c.phase.Is(phaseSubmitted),
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	v := c.viewLocked()
	fns := make([]func(View), 0, len(c.observers))
	for id := 0; id < c.nextObserver; id++ {
		if fn, ok := c.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func copyErrors(errs model.FieldErrors) model.FieldErrors {
	out := make(model.FieldErrors, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
