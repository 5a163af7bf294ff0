package validator

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/amirk1998/univ-erp/pkg/errors"
)

var (
	// Username: 3-32 alphanumeric characters, dots and underscores
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,32}$`)

	// Course code: letters followed by digits, e.g. CSE101
	courseCodeRegex = regexp.MustCompile(`^[A-Z]{2,5}[0-9]{3,4}$`)

	weekdays = map[string]bool{
		"MON": true, "TUE": true, "WED": true, "THU": true,
		"FRI": true, "SAT": true, "SUN": true,
	}

	clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateUsername checks if username is valid and safe
func (v *Validator) ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return errors.ErrInvalidUsername
	}
	return nil
}

// ValidatePassword checks password strength
func (v *Validator) ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 72 {
		return errors.ErrWeakPassword
	}

	var (
		hasUpper  = false
		hasLower  = false
		hasNumber = false
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasUpper || !hasLower || !hasNumber {
		return errors.ErrWeakPassword
	}

	return nil
}

// SanitizeString removes dangerous characters and null bytes
func (v *Validator) SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}

// ValidateCourse validates a course code and title
func (v *Validator) ValidateCourse(code, title string, credits int) error {
	if !courseCodeRegex.MatchString(code) {
		return errors.NewAppError(errors.ErrInvalidInput, "course code must look like CSE101", 400)
	}

	title = strings.TrimSpace(title)
	if len(title) == 0 || len(title) > 255 {
		return errors.NewAppError(errors.ErrInvalidInput, "course title must be 1-255 characters", 400)
	}

	if credits <= 0 || credits > 12 {
		return errors.NewAppError(errors.ErrInvalidInput, "credits must be between 1 and 12", 400)
	}

	return nil
}

// ValidateCapacity rejects non-positive section capacities
func (v *Validator) ValidateCapacity(capacity int) error {
	if capacity <= 0 {
		return errors.NewAppError(errors.ErrInvalidInput, "capacity must be greater than zero", 400)
	}
	return nil
}

// ValidateMeeting checks the day and HH:MM window of a section
func (v *Validator) ValidateMeeting(day, start, end string) error {
	if !weekdays[day] {
		return errors.NewAppError(errors.ErrInvalidInput, "day must be one of MON..SUN", 400)
	}

	if !clockRegex.MatchString(start) || !clockRegex.MatchString(end) {
		return errors.NewAppError(errors.ErrInvalidInput, "times must be HH:MM", 400)
	}

	// HH:MM compares correctly as a string
	if start >= end {
		return errors.NewAppError(errors.ErrInvalidInput, "start time must be before end time", 400)
	}

	return nil
}

// ValidateScore checks an optional component score
func (v *Validator) ValidateScore(score *float64) error {
	if score == nil {
		return nil
	}
	if *score < 0 || *score > 100 {
		return errors.NewAppError(errors.ErrInvalidInput, "scores must be between 0 and 100", 400)
	}
	return nil
}
