package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/tandemhq/tandem-api/internal/recurrence"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("recurrence_pattern", validateRecurrencePattern); err != nil {
		panic(fmt.Sprintf("failed to register recurrence_pattern validator: %v", err))
	}
	if err := Validate.RegisterValidation("iana_timezone", validateIANATimezone); err != nil {
		panic(fmt.Sprintf("failed to register iana_timezone validator: %v", err))
	}
}

// validateRecurrencePattern validates that a string is a schedulable Pattern
// value. The custom pattern is a valid enum member but is not schedulable, so
// it is rejected here at the API boundary.
func validateRecurrencePattern(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	switch recurrence.Pattern(value) {
	case recurrence.PatternDaily, recurrence.PatternWeekly, recurrence.PatternBiweekly,
		recurrence.PatternMonthly, recurrence.PatternQuarterly, recurrence.PatternYearly:
		return true
	default:
		return false
	}
}

// validateIANATimezone validates that a string names a loadable IANA zone.
// An empty value passes; it means UTC downstream.
func validateIANATimezone(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := time.LoadLocation(value)
	return err == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateRecurrencePattern validates a Pattern string value from the API.
func ValidateRecurrencePattern(value string) error {
	switch recurrence.Pattern(value) {
	case recurrence.PatternDaily, recurrence.PatternWeekly, recurrence.PatternBiweekly,
		recurrence.PatternMonthly, recurrence.PatternQuarterly, recurrence.PatternYearly:
		return nil
	default:
		return fmt.Errorf("invalid recurrence pattern: %s (must be 'daily', 'weekly', 'biweekly', 'monthly', 'quarterly', or 'yearly')", value)
	}
}

// ValidateTimezone validates an IANA timezone string from the API.
func ValidateTimezone(value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.LoadLocation(value); err != nil {
		return fmt.Errorf("invalid timezone: %s (must be an IANA zone name like 'America/New_York')", value)
	}
	return nil
}
