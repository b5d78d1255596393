package model

import "time"

// Profile is the record created once a signup draft passes the full schema.
// Fields that belong to the other variant are left empty.
type Profile struct {
	ID         string  `json:"id"`
	AccountID  string  `json:"accountId,omitempty"`
	TelegramID int64   `json:"telegramId"`
	Variant    Variant `json:"variant"`

	City          string `json:"city"`
	Sex           string `json:"sex"`
	Age           int    `json:"age"`
	MaritalStatus string `json:"maritalStatus,omitempty"`
	HasFamily     bool   `json:"hasFamily"`

	PhoneNumber        string   `json:"phoneNumber,omitempty"`
	DOB                string   `json:"dob,omitempty"`
	ExistingConditions []string `json:"existingConditions,omitempty"`

	OnboardingCompleted bool      `json:"onboardingCompleted"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
