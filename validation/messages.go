package validation

import "HealthBot/model"

// Message keys other than validator tags.
const (
	tagAny      = "*"
	tagWhole    = "whole"
	tagAgeRange = "age_range"
	tagMixed    = "mixed"
)

type messageSet map[string]string

var basicMessages = map[string]messageSet{
	model.FieldCity: {tagAny: "Please select your city or town"},
	model.FieldSex:  {tagAny: "Please select one"},
	model.FieldAge: {
		"required": "Please enter your age",
		tagWhole:   "Age must be a whole number",
		tagAny:     "Please enter a valid age",
	},
	model.FieldMaritalStatus: {tagAny: "Please select your status"},
	model.FieldHasFamily:     {tagAny: "Please choose one"},
}

var healthMessages = map[string]messageSet{
	model.FieldPhoneNumber: {
		"required": "Please enter your phone number",
		tagAny:     "Enter a valid Uganda number like +256 7XX XXX XXX",
	},
	model.FieldSex:  {tagAny: "Please select one"},
	model.FieldCity: {tagAny: "Please select your city"},
	model.FieldDOB: {
		"required": "Please select your date of birth",
		tagAny:     "Please enter a valid date of birth",
	},
	model.FieldConditions: {
		tagMixed: "None of the above can't be combined with other conditions",
		tagAny:   "Please choose from the list",
	},
}

const (
	msgFallback     = "Please check this field"
	msgWrongVariant = "Please start the signup again"
)

func lookup(msgs map[string]messageSet, field, tag string) string {
	set, ok := msgs[field]
	if !ok {
		return msgFallback
	}
	if m, ok := set[tag]; ok {
		return m
	}
	if m, ok := set[tagAny]; ok {
		return m
	}
	return msgFallback
}
