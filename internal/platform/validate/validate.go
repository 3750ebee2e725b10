// Package validate checks typed request structs against their `validate`
// struct tags and reports violations as an apperr.ValidationError with one
// message per field.
//
// Besides the stock go-playground rules it registers:
//
//	notblank   string must contain a non-space character
//	notfuture  YYYY-MM-DD string must not be after the facility's today
//	phone      digits with an optional leading +, 7 to 15 digits
//	cents      number with at most two decimal places
package validate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ehr/careflow/internal/apperr"
	"github.com/ehr/careflow/pkg/caldate"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

type Validator struct {
	v     *validator.Validate
	clock caldate.Clock
}

func New(clock caldate.Clock) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	val := &Validator{v: v, clock: clock}
	_ = v.RegisterValidation("notblank", notBlank)
	_ = v.RegisterValidation("notfuture", val.notFuture)
	_ = v.RegisterValidation("phone", phone)
	_ = v.RegisterValidation("cents", cents)
	return val
}

// Struct validates s and returns nil or a *apperr.ValidationError.
func (val *Validator) Struct(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	out := &apperr.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), fe.Tag(), message(fe))
	}
	return out
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func phone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

func cents(fl validator.FieldLevel) bool {
	c := fl.Field().Float() * 100
	return math.Abs(c-math.Round(c)) < 1e-6
}

func (val *Validator) notFuture(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := caldate.Parse(s)
	if err != nil {
		// format problems are reported by the datetime rule
		return true
	}
	return !d.After(val.clock.Today())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "notfuture":
		return "must not be in the future"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be 7 to 15 digits with an optional leading +"
	case "cents":
		return "must have at most two decimal places"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "failed rule " + fe.Tag()
}
