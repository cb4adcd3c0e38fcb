package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/davidbz/liftplan/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateSetRecord, domain.SetRecord{})
	return v
}

// validateSetRecord rejects a completed set that carries no actual reps.
func validateSetRecord(sl validator.StructLevel) {
	set, ok := sl.Current().Interface().(domain.SetRecord)
	if !ok {
		return
	}
	if set.Completed && set.ActualReps == nil {
		sl.ReportError(set.ActualReps, "ActualReps", "ActualReps", "required_when_completed", "")
	}
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}

	fe := fieldErrs[0]
	return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
}
