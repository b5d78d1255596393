// Package flow sequences signup steps, gates forward moves on the current
// step's schema and hands the finished draft to a submission gateway.
package flow

import (
	"context"
	"time"

	"HealthBot/model"
)

// Schema validates the slice of the draft owned by one step. A nil or empty
// result means valid.
type Schema interface {
	Validate(d model.Draft) model.FieldErrors
}

// SchemaFunc adapts a function to Schema.
type SchemaFunc func(d model.Draft) model.FieldErrors

func (f SchemaFunc) Validate(d model.Draft) model.FieldErrors { return f(d) }

// Step is one page of the flow.
type Step struct {
	Name   string
	Title  string
	Fields []string
	Schema Schema
}

// Result is what a gateway reports back. Error is shown to the user verbatim.
type Result struct {
	Success bool
	Error   string
}

// Gateway persists a finished draft. It must re-validate the whole draft
// itself and is called at most once at a time per controller.
type Gateway interface {
	Submit(ctx context.Context, d model.Draft) Result
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, d model.Draft) Result

func (f GatewayFunc) Submit(ctx context.Context, d model.Draft) Result { return f(ctx, d) }

// Hooks receives transition events, for metrics.
type Hooks interface {
	Advanced(step string)
	Retreated(step string)
	ValidationFailed(step string, errs model.FieldErrors)
	Submitted(success bool, took time.Duration)
}

type noHooks struct{}

func (noHooks) Advanced(string) {}
func (noHooks) Retreated(string) {}
func (noHooks) ValidationFailed(string, model.FieldErrors) {}
func (noHooks) Submitted(bool, time.Duration) {}
