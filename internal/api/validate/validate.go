// Package validate holds request-level input validation helpers. Domain
// rules (ownership, role checks) live in the services, not here.
package validate

import (
	"fmt"
	"regexp"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// dateRx matches the completion-marker date format. Calendar validity is
// checked where markers are toggled; this only gates the shape.
var dateRx = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const minPasswordLen = 6

func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func Password(v string) error {
	if len(v) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func Date(v string) error {
	if !dateRx.MatchString(v) {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// -------- Request specific helpers ----------

func Register(username, email, password string) error {
	if err := NonEmpty("username", username); err != nil {
		return err
	}
	if len(username) > 100 {
		return fmt.Errorf("username exceeds 100 characters")
	}
	if err := Email(email); err != nil {
		return err
	}
	return Password(password)
}

func Login(email, password string) error {
	if err := Email(email); err != nil {
		return err
	}
	return NonEmpty("password", password)
}

func CreateHabit(title string, target int) error {
	if err := NonEmpty("title", title); err != nil {
		return err
	}
	if len(title) > 200 {
		return fmt.Errorf("title exceeds 200 characters")
	}
	if target < 0 {
		return fmt.Errorf("target must not be negative")
	}
	return nil
}
