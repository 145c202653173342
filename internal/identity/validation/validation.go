// Package validation checks auth request payloads at the boundary and reports
// every failing field at once.
package validation

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72 // bcrypt ignores bytes past 72
	maxEmailLength    = 254
)

// FieldError is one failing field.
type FieldError struct {
	Field   string
	Message string
}

// Errors is the list of field failures for a payload, sorted by field name.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, f := range e {
		parts[i] = f.Field + ": " + f.Message
	}
	return strings.Join(parts, "; ")
}

// Credentials is the payload for Register and Signin.
type Credentials struct {
	Email    string
	Password string
}

// ValidateCredentials checks email format and password length.
func ValidateCredentials(c Credentials) error {
	return convert(validation.Errors{
		"email": validation.Validate(strings.TrimSpace(c.Email),
			validation.Required.Error("email is required"),
			validation.Length(3, maxEmailLength),
			is.Email.Error("invalid email format"),
		),
		"password": validation.Validate(c.Password,
			validation.Required.Error("password is required"),
			validation.Length(minPasswordLength, maxPasswordLength).Error("password must be between 6 and 72 bytes"),
		),
	}.Filter())
}

// ValidateToken checks that a token field is present and looks like a compact JWS.
func ValidateToken(field, token string) error {
	return convert(validation.Errors{
		field: validation.Validate(token,
			validation.Required.Error(field+" is required"),
			validation.By(compactJWS),
		),
	}.Filter())
}

func compactJWS(value interface{}) error {
	s, _ := value.(string)
	if strings.Count(s, ".") != 2 {
		return errors.New("must be a signed token")
	}
	return nil
}

// convert turns ozzo's map of errors into a deterministic Errors list.
func convert(err error) error {
	if err == nil {
		return nil
	}
	var ve validation.Errors
	if !errors.As(err, &ve) {
		return err
	}
	out := make(Errors, 0, len(ve))
	for field, fe := range ve {
		out = append(out, FieldError{Field: field, Message: fe.Error()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
