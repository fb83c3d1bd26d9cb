package httpx

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FormErrors maps form field names to user-facing messages. "general" holds
// errors that belong to no single field.
type FormErrors map[string]string

// Add records msg for field unless the field already has a message.
func (fe FormErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Empty reports whether no errors were recorded.
func (fe FormErrors) Empty() bool {
	return len(fe) == 0
}

// ValidationErrors converts validator failures to messages. labels gives the
// display name of each struct field; unknown fields use the field name.
func ValidationErrors(err error, labels map[string]string) FormErrors {
	out := FormErrors{}
	if err == nil {
		return out
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out.Add("general", err.Error())
		return out
	}
	for _, fe := range fieldErrs {
		label := labels[fe.Field()]
		if label == "" {
			label = fe.Field()
		}
		out.Add(fe.Field(), message(label, fe))
	}
	return out
}

func message(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "numeric", "number":
		return label + " must be a number"
	case "gte":
		if fe.Param() == "0" {
			return label + " must be zero or more"
		}
		return label + " must be at least " + fe.Param()
	case "gt":
		if fe.Param() == "0" {
			return label + " must be more than zero"
		}
		return label + " must be more than " + fe.Param()
	case "max":
		return label + " is too long"
	case "oneof":
		return label + " is not a valid choice"
	default:
		return label + " is invalid"
	}
}
