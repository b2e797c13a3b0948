package validate

import (
	"fmt"
	"regexp"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLen = 8

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
	if len(v) > 256 {
		return fmt.Errorf("password exceeds 256 characters")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func MaxLen(field, v string, limit int) error {
	if len(v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// -------- Request specific helpers ----------

func Credentials(email, password string) error {
	if err := Email(email); err != nil {
		return err
	}
	return Password(password)
}

func MessageContent(content string) error {
	if err := NonEmpty("content", content); err != nil {
		return err
	}
	return MaxLen("content", content, 8000)
}

func UserContext(role, tools, goals, prefs string) error {
	for field, v := range map[string]string{"role": role, "tools": tools, "goals": goals, "prefs": prefs} {
		if err := MaxLen(field, v, 500); err != nil {
			return err
		}
	}
	return nil
}
