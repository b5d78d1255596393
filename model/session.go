package model

import (
	"encoding/json"
	"time"
)

// Session is the serialisable snapshot of one user's signup flow.
type Session struct {
	Variant        Variant         `json:"variant"`
	Step           int             `json:"step"`
	Draft          json.RawMessage `json:"draft"`
	PanelMessageID int             `json:"panelMessageId,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewSession encodes draft at step.
func NewSession(step int, draft Draft, panelMessageID int) (Session, error) {
	raw, err := json.Marshal(draft)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Variant:        draft.Variant(),
		Step:           step,
		Draft:          raw,
		PanelMessageID: panelMessageID,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// RestoreDraft decodes the stored draft.
func (s Session) RestoreDraft() (Draft, error) {
	return DecodeDraft(s.Variant, s.Draft)
}
