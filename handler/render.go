package handler

import (
	"fmt"
	"strconv"
	"strings"

	"HealthBot/flow"
	"HealthBot/model"
	"HealthBot/signup"

	"github.com/go-telegram/bot/models"
)

// Callback data prefixes.
const (
	cbField  = "f"
	cbToggle = "t"
	cbNav    = "nav"

	navNext   = "next"
	navBack   = "back"
	navFinish = "finish"
)

var stepHints = map[string]string{
	signup.StepCity:      "Pick your town below or type it.",
	signup.StepBasicInfo: "Type your age in years.",
	signup.StepPhone:     "Type your number, for example +256 772 123 456.",
	signup.StepAboutYou:  "Type your date of birth as DD/MM/YYYY.",
	signup.StepHealth:    "Tap every condition that applies.",
}

var fieldLabels = map[string]string{
	model.FieldCity:          "City",
	model.FieldSex:           "Sex",
	model.FieldAge:           "Age",
	model.FieldMaritalStatus: "Status",
	model.FieldHasFamily:     "Family",
	model.FieldPhoneNumber:   "Phone",
	model.FieldDOB:           "Date of birth",
	model.FieldConditions:    "Conditions",
}

func panelText(v flow.View, fields []string) string {
	if v.IsSubmitted {
		return msgWelcome
	}

	var b strings.Builder
	b.WriteString(v.Progress().Label)
	b.WriteString("\n\n")
	b.WriteString(v.StepTitle)

	if answers := stepAnswers(v.Draft, fields); len(answers) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(answers, "\n"))
	}
	if hint := stepHints[v.StepName]; hint != "" && !v.IsSubmitting {
		b.WriteString("\n\n")
		b.WriteString(hint)
	}

	order := append(append([]string(nil), fields...), model.FormField)
	var problems []string
	for _, f := range order {
		if msg, ok := v.FieldErrors[f]; ok {
			problems = append(problems, "⚠️ "+msg)
		}
	}
	if len(problems) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(problems, "\n"))
	}

	if v.SubmissionError != "" {
		b.WriteString("\n\n❗ ")
		b.WriteString(v.SubmissionError)
	}
	if v.IsSubmitting {
		b.WriteString("\n\n")
		b.WriteString(msgSaving)
	}
	return b.String()
}

func stepAnswers(d model.Draft, fields []string) []string {
	var out []string
	for _, f := range fields {
		val := fieldValue(d, f)
		if val == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", fieldLabels[f], val))
	}
	return out
}

func fieldValue(d model.Draft, field string) string {
	switch d := d.(type) {
	case *model.BasicDraft:
		switch field {
		case model.FieldCity:
			return d.City
		case model.FieldSex:
			return title(d.Sex)
		case model.FieldAge:
			return d.Age
		case model.FieldMaritalStatus:
			return title(d.MaritalStatus)
		case model.FieldHasFamily:
			if d.HasFamily == nil {
				return ""
			}
			if *d.HasFamily {
				return "Yes"
			}
			return "No"
		}
	case *model.HealthDraft:
		switch field {
		case model.FieldPhoneNumber:
			if d.PhoneNumber == model.PhonePrefix {
				return ""
			}
			return d.PhoneNumber
		case model.FieldSex:
			return title(d.Sex)
		case model.FieldCity:
			return d.City
		case model.FieldDOB:
			return d.DOB
		case model.FieldConditions:
			return strings.Join(d.Conditions, ", ")
		}
	}
	return ""
}

// panelKeyboard returns nil while a submission is outstanding or done.
func panelKeyboard(v flow.View) *models.InlineKeyboardMarkup {
	if v.IsSubmitting || v.IsSubmitted {
		return nil
	}

	var rows [][]models.InlineKeyboardButton
	switch d := v.Draft.(type) {
	case *model.BasicDraft:
		switch v.StepName {
		case signup.StepCity:
			rows = choiceRows(model.FieldCity, model.Cities, d.City, 2)
		case signup.StepBasicInfo:
			rows = append(choiceRows(model.FieldSex, model.Sexes, d.Sex, 2),
				choiceRows(model.FieldMaritalStatus, model.MaritalStatuses, d.MaritalStatus, 3)...)
		case signup.StepFamily:
			rows = [][]models.InlineKeyboardButton{{
				choiceButton(model.FieldHasFamily, "true", "Yes", d.HasFamily != nil && *d.HasFamily),
				choiceButton(model.FieldHasFamily, "false", "No", d.HasFamily != nil && !*d.HasFamily),
			}}
		}
	case *model.HealthDraft:
		switch v.StepName {
		case signup.StepAboutYou:
			rows = append(choiceRows(model.FieldSex, model.Sexes, d.Sex, 2),
				choiceRows(model.FieldCity, model.Cities, d.City, 2)...)
		case signup.StepHealth:
			rows = conditionRows(d)
		}
	}

	rows = append(rows, navRow(v))
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func choiceRows(field string, options []string, selected string, perRow int) [][]models.InlineKeyboardButton {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, opt := range options {
		row = append(row, choiceButton(field, opt, title(opt), opt == selected))
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func choiceButton(field, value, label string, selected bool) models.InlineKeyboardButton {
	if selected {
		label = "✅ " + label
	}
	return models.InlineKeyboardButton{
		Text:         label,
		CallbackData: cbField + ":" + field + ":" + value,
	}
}

func conditionRows(d *model.HealthDraft) [][]models.InlineKeyboardButton {
	rows := make([][]models.InlineKeyboardButton, 0, len(model.HealthConditions))
	for i, c := range model.HealthConditions {
		label := c
		if d.HasCondition(c) {
			label = "✅ " + c
		}
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         label,
			CallbackData: cbToggle + ":" + strconv.Itoa(i),
		}})
	}
	return rows
}

func navRow(v flow.View) []models.InlineKeyboardButton {
	var row []models.InlineKeyboardButton
	if !v.IsFirstStep() {
		row = append(row, models.InlineKeyboardButton{Text: "⬅ Back", CallbackData: cbNav + ":" + navBack})
	}
	if v.IsLastStep() {
		row = append(row, models.InlineKeyboardButton{Text: "✅ Finish", CallbackData: cbNav + ":" + navFinish})
	} else {
		row = append(row, models.InlineKeyboardButton{Text: "Next ➡", CallbackData: cbNav + ":" + navNext})
	}
	return row
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
