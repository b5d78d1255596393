package model

import "errors"

var (
	ErrSessionNotFound = errors.New("session does not exist")
	ErrProfileExists   = errors.New("profile already exists")
	ErrUnknownVariant  = errors.New("unknown signup variant")
)

// FormField keys errors that do not belong to a single input.
const FormField = "form"

// FieldErrors maps a field name to a message that can be shown as is.
type FieldErrors map[string]string

// First returns the message of the first field in order that has one.
func (fe FieldErrors) First(order []string) string {
	for _, f := range order {
		if msg, ok := fe[f]; ok {
			return msg
		}
	}
	if msg, ok := fe[FormField]; ok {
		return msg
	}
	for _, msg := range fe {
		return msg
	}
	return ""
}
