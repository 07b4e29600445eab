package ledger

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
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
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// validateInput checks struct tags and reports the first offending field.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	reason := "is invalid"
	switch fe.Tag() {
	case "required", "notblank":
		reason = "is required"
	case "max":
		reason = "must be at most " + fe.Param() + " characters"
	}
	return &ValidationError{Field: fe.Field(), Reason: reason}
}

// parseAmount turns user text into a strictly positive cent amount.
func parseAmount(field string, raw json.Number) (money.Amount, error) {
	a, err := money.ParsePositive(raw.String())
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, money.ErrNotPositive):
		return money.Zero, &ValidationError{Field: field, Reason: "must be greater than zero"}
	case errors.Is(err, money.ErrOutOfRange):
		return money.Zero, &ValidationError{Field: field, Reason: "must not exceed " + money.MaxAmount.String()}
	case errors.Is(err, money.ErrTooPrecise):
		return money.Zero, &ValidationError{Field: field, Reason: "must have at most two decimal places"}
	default:
		return money.Zero, &ValidationError{Field: field, Reason: "must be a number"}
	}
}

func validateActor(actor identity.Actor) error {
	if err := actor.Validate(); err != nil {
		return &ValidationError{Field: "actor", Reason: "is required"}
	}
	return nil
}
