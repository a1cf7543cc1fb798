package record

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegistrationInput is what the student submits on the registration form.
type RegistrationInput struct {
	Name    string `json:"name" validate:"required"`
	Roll    string `json:"roll" validate:"required,number,max=18"`
	Branch  string `json:"branch" validate:"required"`
	Session string `json:"session" validate:"required"`
	Contact string `json:"contact" validate:"omitempty,len=10,number"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field string
	Rule  string
}

func (e FieldError) String() string {
	switch {
	case e.Rule == "required":
		return e.Field + " is required"
	case e.Field == "contact":
		return "contact must be exactly 10 digits"
	case e.Field == "roll":
		return "roll must be a whole number"
	default:
		return fmt.Sprintf("%s failed %q", e.Field, e.Rule)
	}
}

// ValidationError is returned before any flow starts when the input is malformed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return "invalid registration: " + strings.Join(msgs, "; ")
}

// Normalize trims surrounding whitespace from every field.
func (in RegistrationInput) Normalize() RegistrationInput {
	return RegistrationInput{
		Name:    strings.TrimSpace(in.Name),
		Roll:    strings.TrimSpace(in.Roll),
		Branch:  strings.TrimSpace(in.Branch),
		Session: strings.TrimSpace(in.Session),
		Contact: strings.TrimSpace(in.Contact),
	}
}

// Validate checks the required fields and the contact format.
func (in RegistrationInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

// RollNumber parses the roll as the integer key used by the remote store.
func (in RegistrationInput) RollNumber() (int64, error) {
	roll, err := strconv.ParseInt(in.Roll, 10, 64)
	if err != nil {
		return 0, &ValidationError{Fields: []FieldError{{Field: "roll", Rule: "number"}}}
	}
	return roll, nil
}
