// Package signup wires the two onboarding variants to the flow controller and
// implements the submission gateway in front of the profile store.
package signup

import (
	"fmt"

	"HealthBot/flow"
	"HealthBot/model"
	"HealthBot/validation"
)

// Step names.
const (
	StepCity      = "city"
	StepBasicInfo = "basic_info"
	StepFamily    = "family"
	StepPhone     = "phone"
	StepAboutYou  = "about_you"
	StepHealth    = "health"
)

func BasicSteps(s *validation.Schemas) []flow.Step {
	return []flow.Step{
		{Name: StepCity, Title: "Where do you live?", Fields: s.City.Fields(), Schema: s.City},
		{Name: StepBasicInfo, Title: "Tell us about yourself", Fields: s.BasicInfo.Fields(), Schema: s.BasicInfo},
		{Name: StepFamily, Title: "Do you have a family you'd like to manage health for?", Fields: s.Family.Fields(), Schema: s.Family},
	}
}

func HealthSteps(s *validation.Schemas) []flow.Step {
	return []flow.Step{
		{Name: StepPhone, Title: "What is your phone number?", Fields: s.Phone.Fields(), Schema: s.Phone},
		{Name: StepAboutYou, Title: "Tell us about yourself", Fields: s.Info.Fields(), Schema: s.Info},
		{Name: StepHealth, Title: "Do you have any of these conditions?", Fields: s.Conditions.Fields(), Schema: s.Conditions},
	}
}

func Steps(v model.Variant, s *validation.Schemas) ([]flow.Step, error) {
	switch v {
	case model.VariantBasic:
		return BasicSteps(s), nil
	case model.VariantHealth:
		return HealthSteps(s), nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownVariant, v)
}

// NewFlow builds a controller for the draft's variant.
func NewFlow(d model.Draft, s *validation.Schemas, gw flow.Gateway, opts ...flow.Option) (*flow.Controller, error) {
	if d == nil {
		return nil, flow.ErrNilDraft
	}
	if s == nil {
		return nil, fmt.Errorf("signup flow: schemas are required")
	}
	steps, err := Steps(d.Variant(), s)
	if err != nil {
		return nil, err
	}
	return flow.New(steps, d, gw, opts...)
}
