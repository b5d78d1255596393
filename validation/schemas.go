// Package validation holds the per-step signup schemas and the full-signup
// schemas used again at the submission boundary.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"HealthBot/model"

	"github.com/go-playground/validator/v10"
)

var ugandaPhone = regexp.MustCompile(`^\+256[0-9]{9}$`)

const maxAge = 150

// Schema validates the part of a draft owned by one step.
type Schema struct {
	name   string
	fields []string
	check  func(model.Draft) model.FieldErrors
}

// Validate returns nil when the slice is valid.
func (s Schema) Validate(d model.Draft) model.FieldErrors {
	if s.check == nil {
		return model.FieldErrors{model.FormField: msgWrongVariant}
	}
	errs := s.check(d)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (s Schema) Name() string { return s.name }

// Fields lists the draft fields the schema covers, in display order.
func (s Schema) Fields() []string { return s.fields }

// Union merges schemas into one that reports every failing field.
func Union(name string, schemas ...Schema) Schema {
	var fields []string
	for _, s := range schemas {
		fields = append(fields, s.fields...)
	}
	return Schema{
		name:   name,
		fields: fields,
		check: func(d model.Draft) model.FieldErrors {
			out := model.FieldErrors{}
			for _, s := range schemas {
				for f, msg := range s.Validate(d) {
					if _, seen := out[f]; !seen {
						out[f] = msg
					}
				}
			}
			return out
		},
	}
}

// Schemas is built once at startup and passed to whoever needs it.
type Schemas struct {
	validate *validator.Validate
	now      func() time.Time

	City      Schema
	BasicInfo Schema
	Family    Schema
	Basic     Schema

	Phone      Schema
	Info       Schema
	Conditions Schema
	Health     Schema
}

type Option func(*Schemas)

// WithClock sets the time used to derive age from a date of birth.
func WithClock(now func() time.Time) Option {
	return func(s *Schemas) {
		s.now = now
	}
}

// New registers the custom rules and builds every schema. A registration
// failure is returned instead of falling back to a permissive schema.
func New(opts ...Option) (*Schemas, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("ugphone", func(fl validator.FieldLevel) bool {
		return ugandaPhone.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register ugphone rule: %w", err)
	}
	if err := v.RegisterValidation("condition", func(fl validator.FieldLevel) bool {
		return model.IsCondition(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register condition rule: %w", err)
	}

	s := &Schemas{validate: v, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	s.City = Schema{name: "city", fields: []string{model.FieldCity}, check: basic(s.checkCity)}
	s.BasicInfo = Schema{
		name:   "basic_info",
		fields: []string{model.FieldSex, model.FieldAge, model.FieldMaritalStatus},
		check:  basic(s.checkBasicInfo),
	}
	s.Family = Schema{name: "family", fields: []string{model.FieldHasFamily}, check: basic(s.checkFamily)}
	s.Basic = Union("basic_signup", s.City, s.BasicInfo, s.Family)

	s.Phone = Schema{name: "phone", fields: []string{model.FieldPhoneNumber}, check: health(s.checkPhone)}
	s.Info = Schema{
		name:   "info",
		fields: []string{model.FieldSex, model.FieldCity, model.FieldDOB},
		check:  health(s.checkInfo),
	}
	s.Conditions = Schema{name: "conditions", fields: []string{model.FieldConditions}, check: health(s.checkConditions)}
	s.Health = Union("health_signup", s.Phone, s.Info, s.Conditions)

	return s, nil
}

// For returns the full signup schema of a variant.
func (s *Schemas) For(v model.Variant) (Schema, error) {
	switch v {
	case model.VariantBasic:
		return s.Basic, nil
	case model.VariantHealth:
		return s.Health, nil
	}
	return Schema{}, fmt.Errorf("%w: %q", model.ErrUnknownVariant, v)
}

func basic(fn func(*model.BasicDraft) model.FieldErrors) func(model.Draft) model.FieldErrors {
	return func(d model.Draft) model.FieldErrors {
		bd, ok := d.(*model.BasicDraft)
		if !ok || bd == nil {
			return model.FieldErrors{model.FormField: msgWrongVariant}
		}
		return fn(bd)
	}
}

func health(fn func(*model.HealthDraft) model.FieldErrors) func(model.Draft) model.FieldErrors {
	return func(d model.Draft) model.FieldErrors {
		hd, ok := d.(*model.HealthDraft)
		if !ok || hd == nil {
			return model.FieldErrors{model.FormField: msgWrongVariant}
		}
		return fn(hd)
	}
}

type cityInput struct {
	City string `json:"city" validate:"required"`
}

type basicInfoInput struct {
	Sex           string `json:"sex" validate:"required,oneof=male female"`
	Age           *int   `json:"age" validate:"required,min=1,max=150"`
	MaritalStatus string `json:"marital_status" validate:"required,oneof=single married divorced widowed other"`
}

type familyInput struct {
	HasFamily *bool `json:"has_family" validate:"required"`
}

type phoneInput struct {
	PhoneNumber string `json:"phone_number" validate:"required,ugphone"`
}

type infoInput struct {
	Sex  string `json:"sex" validate:"required,oneof=male female"`
	City string `json:"city" validate:"required"`
	DOB  string `json:"dob" validate:"required,datetime=2006-01-02"`
}

type conditionsInput struct {
	Conditions []string `json:"existing_conditions" validate:"dive,condition"`
}

func (s *Schemas) checkCity(d *model.BasicDraft) model.FieldErrors {
	return s.run(cityInput{City: d.City}, basicMessages)
}

func (s *Schemas) checkBasicInfo(d *model.BasicDraft) model.FieldErrors {
	age, ageTag := parseAge(d.Age)
	errs := s.run(basicInfoInput{Sex: d.Sex, Age: age, MaritalStatus: d.MaritalStatus}, basicMessages)
	if ageTag != "" {
		errs = put(errs, model.FieldAge, lookup(basicMessages, model.FieldAge, ageTag))
	}
	return errs
}

func (s *Schemas) checkFamily(d *model.BasicDraft) model.FieldErrors {
	return s.run(familyInput{HasFamily: d.HasFamily}, basicMessages)
}

func (s *Schemas) checkPhone(d *model.HealthDraft) model.FieldErrors {
	return s.run(phoneInput{PhoneNumber: d.PhoneNumber}, healthMessages)
}

func (s *Schemas) checkInfo(d *model.HealthDraft) model.FieldErrors {
	errs := s.run(infoInput{Sex: d.Sex, City: d.City, DOB: d.DOB}, healthMessages)
	if _, bad := errs[model.FieldDOB]; bad {
		return errs
	}
	// A well-formed date can still be a birth date in the future or too far back.
	if age, ok := d.Age(s.now()); !ok || age < 0 || age > maxAge {
		errs = put(errs, model.FieldDOB, lookup(healthMessages, model.FieldDOB, tagAgeRange))
	}
	return errs
}

func (s *Schemas) checkConditions(d *model.HealthDraft) model.FieldErrors {
	errs := s.run(conditionsInput{Conditions: d.Conditions}, healthMessages)
	if _, bad := errs[model.FieldConditions]; bad {
		return errs
	}
	if d.HasCondition(model.ConditionNone) && len(d.Conditions) > 1 {
		errs = put(errs, model.FieldConditions, lookup(healthMessages, model.FieldConditions, tagMixed))
	}
	return errs
}

// run validates input and keeps the first message per field.
func (s *Schemas) run(input any, msgs map[string]messageSet) model.FieldErrors {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.FieldErrors{model.FormField: msgFallback}
	}
	out := model.FieldErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		if strings.HasPrefix(field, model.FieldConditions) {
			// dive errors are reported as existing_conditions[i]
			field = model.FieldConditions
		}
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = lookup(msgs, field, fe.Tag())
	}
	return out
}

// parseAge turns raw input into a value for the struct rules. A non-empty tag
// means the input could not be used at all and names the message to show.
func parseAge(raw string) (*int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return &n, ""
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, "required"
	}
	if f != math.Trunc(f) {
		return nil, tagWhole
	}
	if math.Abs(f) > math.MaxInt32 {
		return nil, tagAgeRange
	}
	n := int(f)
	return &n, ""
}

func put(errs model.FieldErrors, field, msg string) model.FieldErrors {
	if errs == nil {
		errs = model.FieldErrors{}
	}
	errs[field] = msg
	return errs
}
