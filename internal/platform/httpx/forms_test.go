package httpx

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type sampleForm struct {
	Name   string  `validate:"required"`
	Amount float64 `validate:"gt=0"`
	Price  string  `validate:"required,numeric"`
	Kind   string  `validate:"omitempty,oneof=paid credit"`
}

func TestValidationErrorsMessages(t *testing.T) {
	err := validator.New().Struct(sampleForm{Price: "abc", Kind: "cash"})
	errs := ValidationErrors(err, map[string]string{"Name": "Name", "Amount": "Amount", "Price": "Cost price"})

	assert.Equal(t, "Name is required", errs["Name"])
	assert.Equal(t, "Amount must be more than zero", errs["Amount"])
	assert.Equal(t, "Cost price must be a number", errs["Price"])
	assert.Equal(t, "Kind is not a valid choice", errs["Kind"])
	assert.False(t, errs.Empty())
}

func TestValidationErrorsNonValidatorError(t *testing.T) {
	errs := ValidationErrors(errors.New("boom"), nil)
	assert.Equal(t, FormErrors{"general": "boom"}, errs)
	assert.True(t, ValidationErrors(nil, nil).Empty())
}
