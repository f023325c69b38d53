package core

// convert.go turns raw cell text into typed values.
//
// Input rows come from spreadsheets exported by different systems, so the
// parsers are forgiving:
//   - Multiple date formats (US, EU, ISO, with or without a time part)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Every parser reports validity instead of returning an error; the caller
// decides whether an invalid value is a failure.

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are
// assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-01-02 15:04:05", "2006/01/02 15:04:05", "2006-01-02T15:04:05", time.RFC3339,
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "02-Jan-2006", "2-Jan-2006",
		"20060102",
	}
)

// missingMarkers are spellings that mean "no value" in exported sheets.
var missingMarkers = map[string]struct{}{
	"nan":    {},
	"null":   {},
	"none":   {},
	"nat":    {},
	"<na>":   {},
	"#n/a":   {},
	"n/a":    {},
	"<null>": {},
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, the Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// NormalizeValue cleans a cell and maps missing markers ("NaN", "null", ...) to "".
func NormalizeValue(s string) string {
	s = CleanCell(s)
	if _, missing := missingMarkers[strings.ToLower(s)]; missing {
		return ""
	}
	return s
}

// ToPgDate converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// ParseDate parses a date cell, returning false when it is empty or unparsable.
func ParseDate(s string) (time.Time, bool) {
	d := ToPgDate(s)
	return d.Time, d.Valid
}

// ParseDecimal converts a string to a decimal.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)

	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// ParseBool accepts true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// ValidateCell checks a non-empty value against a field type.
// It returns "" when valid, or a short description of the problem.
func ValidateCell(value string, ft FieldType) string {
	if value == "" {
		return ""
	}

	switch ft {
	case FieldInteger:
		d, ok := ParseDecimal(value)
		if !ok || !d.IsInteger() {
			return "invalid integer"
		}
	case FieldFloat:
		if _, ok := ParseDecimal(value); !ok {
			return "invalid number format"
		}
	case FieldDate:
		if _, ok := ParseDate(value); !ok {
			return "invalid date format (use YYYY/MM/DD or similar)"
		}
	case FieldBool:
		if _, ok := ParseBool(value); !ok {
			return "must be yes/no, true/false, or 1/0"
		}
	}
	return ""
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
