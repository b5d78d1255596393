package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Variant names a signup field set. The two variants are independent flows and
// are never mixed in one Draft.
type Variant string

const (
	VariantBasic  Variant = "basic"
	VariantHealth Variant = "health"
)

// Field names shared by the drafts, schemas and the presentation layer.
const (
	FieldCity          = "city"
	FieldSex           = "sex"
	FieldAge           = "age"
	FieldMaritalStatus = "marital_status"
	FieldHasFamily     = "has_family"
	FieldPhoneNumber   = "phone_number"
	FieldDOB           = "dob"
	FieldConditions    = "existing_conditions"
)

// Draft is the in-progress signup record. Setting a field never validates.
type Draft interface {
	Variant() Variant
	SetField(name, value string)
	Clone() Draft
}

// ConditionToggler is implemented by drafts that carry a condition set.
type ConditionToggler interface {
	ToggleCondition(name string)
}

// NewDraft returns an empty draft for the variant.
func NewDraft(v Variant) (Draft, error) {
	switch v {
	case VariantBasic:
		return &BasicDraft{}, nil
	case VariantHealth:
		return &HealthDraft{PhoneNumber: PhonePrefix}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
}

// DecodeDraft restores a draft previously encoded with json.Marshal.
func DecodeDraft(v Variant, raw []byte) (Draft, error) {
	d, err := NewDraft(v)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode %s draft: %w", v, err)
	}
	return d, nil
}

// BasicDraft is the city / basic info / family field set.
// Age is kept as entered so the schema can tell a missing value from a bad one.
type BasicDraft struct {
	City          string `json:"city"`
	Sex           string `json:"sex"`
	Age           string `json:"age"`
	MaritalStatus string `json:"marital_status"`
	HasFamily     *bool  `json:"has_family"`
}

func (d *BasicDraft) Variant() Variant { return VariantBasic }

func (d *BasicDraft) SetField(name, value string) {
	switch name {
	case FieldCity:
		d.City = strings.TrimSpace(value)
	case FieldSex:
		d.Sex = value
	case FieldAge:
		d.Age = strings.TrimSpace(value)
	case FieldMaritalStatus:
		d.MaritalStatus = value
	case FieldHasFamily:
		switch value {
		case "true":
			v := true
			d.HasFamily = &v
		case "false":
			v := false
			d.HasFamily = &v
		default:
			d.HasFamily = nil
		}
	}
}

func (d *BasicDraft) Clone() Draft {
	c := *d
	if d.HasFamily != nil {
		v := *d.HasFamily
		c.HasFamily = &v
	}
	return &c
}

// HealthDraft is the phone / about you / health conditions field set.
// There is no stored age: it is always derived from DOB.
type HealthDraft struct {
	PhoneNumber string   `json:"phone_number"`
	Sex         string   `json:"sex"`
	City        string   `json:"city"`
	DOB         string   `json:"dob"`
	Conditions  []string `json:"existing_conditions"`
}

func (d *HealthDraft) Variant() Variant { return VariantHealth }

func (d *HealthDraft) SetField(name, value string) {
	switch name {
	case FieldPhoneNumber:
		d.PhoneNumber = NormalizePhone(value)
	case FieldSex:
		d.Sex = value
	case FieldCity:
		d.City = strings.TrimSpace(value)
	case FieldDOB:
		if iso, ok := ParseDOB(value); ok {
			d.DOB = iso
		} else {
			d.DOB = strings.TrimSpace(value)
		}
	}
}

// ToggleCondition applies the "none of the above" rule: selecting the sentinel
// replaces the set with just the sentinel, deselecting it empties the set, and
// any real condition first drops the sentinel and then toggles itself.
func (d *HealthDraft) ToggleCondition(name string) {
	if name == ConditionNone {
		if d.HasCondition(ConditionNone) {
			d.Conditions = []string{}
		} else {
			d.Conditions = []string{ConditionNone}
		}
		return
	}

	without := make([]string, 0, len(d.Conditions)+1)
	for _, c := range d.Conditions {
		if c != ConditionNone {
			without = append(without, c)
		}
	}
	for i, c := range without {
		if c == name {
			d.Conditions = append(without[:i], without[i+1:]...)
			return
		}
	}
	d.Conditions = append(without, name)
}

// HasCondition reports whether name is currently selected.
func (d *HealthDraft) HasCondition(name string) bool {
	for _, c := range d.Conditions {
		if c == name {
			return true
		}
	}
	return false
}

// Age derives the age in whole years at now. ok is false when DOB is not a
// calendar date.
func (d *HealthDraft) Age(now time.Time) (age int, ok bool) {
	birth, err := time.Parse(time.DateOnly, d.DOB)
	if err != nil {
		return 0, false
	}
	return AgeAt(birth, now), true
}

func (d *HealthDraft) Clone() Draft {
	c := *d
	if d.Conditions != nil {
		c.Conditions = append([]string{}, d.Conditions...)
	}
	return &c
}

// AgeAt counts full years between birth and now. Birth dates in the future
// give a negative result.
func AgeAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}
