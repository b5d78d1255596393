package repo

import (
	"HealthBot/model"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const sheetColumns = "A:O"

var sheetHeaders = []interface{}{
	"Profile ID", "Telegram ID", "Account ID", "Variant", "City", "Sex", "Age",
	"Marital status", "Has family", "Phone", "Date of birth", "Conditions",
	"Onboarding completed", "Created at", "Updated at",
}

// SheetsConnector appends finished profiles as rows of a spreadsheet.
type SheetsConnector struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsConnector(ctx context.Context, credentialsPath, spreadsheetID string) (*SheetsConnector, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return &SheetsConnector{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

// SetupHeaders writes the header row.
func (s *SheetsConnector) SetupHeaders(ctx context.Context) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{sheetHeaders},
	}

	_, err := s.service.Spreadsheets.Values.Update(
		s.spreadsheetID,
		"A1:O1",
		valueRange,
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to write headers: %w", err)
	}
	return nil
}

func (s *SheetsConnector) CreateProfile(ctx context.Context, p model.Profile) (string, error) {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{profileRow(p)},
	}

	_, err := s.service.Spreadsheets.Values.Append(
		s.spreadsheetID,
		sheetColumns,
		valueRange,
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to add profile: %w", err)
	}
	return p.ID, nil
}

func profileRow(p model.Profile) []interface{} {
	return []interface{}{
		p.ID,
		strconv.FormatInt(p.TelegramID, 10),
		p.AccountID,
		string(p.Variant),
		p.City,
		p.Sex,
		p.Age,
		p.MaritalStatus,
		p.HasFamily,
		p.PhoneNumber,
		p.DOB,
		strings.Join(p.ExistingConditions, ", "),
		p.OnboardingCompleted,
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	}
}
