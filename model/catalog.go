package model

import (
	"fmt"
	"strconv"
	"strings"
)

// PhonePrefix is the country code new phone numbers start from.
const PhonePrefix = "+256"

// ConditionNone is the sentinel that can't be combined with real conditions.
const ConditionNone = "None of the above"

var Cities = []string{
	"Kampala",
	"Jinja",
	"Gulu",
	"Mbarara",
	"Lira",
	"Mbale",
	"Masaka",
	"Entebbe",
	"Fort Portal",
	"Soroti",
	"Arua",
	"Hoima",
}

// HealthConditions lists the selectable conditions, sentinel last.
var HealthConditions = []string{
	"Diabetes",
	"High Blood Pressure",
	"Asthma",
	"HIV / AIDS",
	"Sickle Cell Disease",
	"Malaria (recurring)",
	"Tuberculosis",
	"Heart Disease",
	"Epilepsy",
	"Kidney Disease",
	"Hepatitis B",
	"Arthritis",
	ConditionNone,
}

var Sexes = []string{"male", "female"}

var MaritalStatuses = []string{"single", "married", "divorced", "widowed", "other"}

// IsCondition reports whether name is in HealthConditions.
func IsCondition(name string) bool {
	for _, c := range HealthConditions {
		if c == name {
			return true
		}
	}
	return false
}

// NormalizePhone strips separators a user may type or Telegram may send with a
// shared contact. It does not validate.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case ' ', '-', '(', ')', '.':
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if strings.HasPrefix(s, "256") {
		s = "+" + s
	}
	return s
}

// ParseDOB composes a YYYY-MM-DD string from day/month/year input such as
// "7/3/1990", "07-03-1990", "7.3.1990", "7 3 1990" or an ISO date. It only
// checks the shape; calendar validity is left to the schema.
func ParseDOB(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '/' || r == '-' || r == '.' || r == ' '
	})
	if len(parts) != 3 {
		return "", false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", false
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	if len(parts[0]) == 4 {
		year, month, day = nums[0], nums[1], nums[2]
	} else if len(parts[2]) != 4 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}
