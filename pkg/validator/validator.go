package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	playground "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/medvault-api/pkg/errors"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
	ValidateField(field string, value interface{}, rules ...string) error
}

type validator struct {
	v *playground.Validate
}

func New() Validator {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.SetTagName("validate")

	// Report json names so messages match what clients sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("isodate", isISODate)
	_ = v.RegisterValidation("hhmm", isHHMM)

	return &validator{v: v}
}

func (v *validator) Validate(obj interface{}) error {
	return translate(v.v.Struct(obj))
}

func (v *validator) ValidateField(field string, value interface{}, rules ...string) error {
	err := v.v.Var(value, strings.Join(rules, ","))
	if err == nil {
		return nil
	}
	var verrs playground.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		return errors.Validation("%s", describe(field, verrs[0]))
	}
	return errors.Validation("%s is invalid", field)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs playground.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Validation("%v", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe.Field(), fe))
	}
	return errors.Validation("%s", strings.Join(msgs, "; "))
}

func describe(field string, fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "isodate":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD form", field)
	case "hhmm":
		return fmt.Sprintf("%s must be a 24h time in HH:MM form", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func isISODate(fl playground.FieldLevel) bool {
	s := fl.Field().String()
	d, err := time.Parse("2006-01-02", s)
	return err == nil && d.Format("2006-01-02") == s
}

func isHHMM(fl playground.FieldLevel) bool {
	s := fl.Field().String()
	t, err := time.Parse("15:04", s)
	return err == nil && t.Format("15:04") == s
}
