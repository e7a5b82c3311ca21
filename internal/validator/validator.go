package validator

import (
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// fastOperators lists the operators each FAST filter type understands.
var fastOperators = map[string][]string{
	"AGE":   {"GTE", "LTE", "BETWEEN", "NOT_GTE", "NOT_LTE", "NOT_BETWEEN"},
	"GRADE": {"IN", "NOT_IN"},
}

// New creates a new validator instance with custom validations registered.
// This ensures consistent validation across the application and tests.
func New() *validator.Validate {
	v := validator.New()

	// "notblank" rejects whitespace-only strings such as activity names
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	v.RegisterStructValidation(validateFilter, model.FilterDetail{})

	return v
}

// validateFilter rejects FAST filters the eligibility evaluator could never pass.
func validateFilter(sl validator.StructLevel) {
	f := sl.Current().Interface().(model.FilterDetail)
	if f.Phase != "FAST" {
		return
	}

	ops, known := fastOperators[f.Type]
	if !known {
		sl.ReportError(f.Type, "Type", "type", "fasttype", "")
		return
	}
	if !slices.Contains(ops, f.Operator) {
		sl.ReportError(f.Operator, "Operator", "operator", "fastoperator", "")
		return
	}
	if len(f.Values) == 0 {
		sl.ReportError(f.Values, "Values", "values", "required", "")
		return
	}

	if f.Type == "AGE" {
		if strings.HasSuffix(f.Operator, "BETWEEN") && len(f.Values) != 2 {
			sl.ReportError(f.Values, "Values", "values", "len", "2")
			return
		}
		for _, raw := range f.Values {
			if _, err := strconv.Atoi(raw); err != nil {
				sl.ReportError(f.Values, "Values", "values", "numeric", "")
				return
			}
		}
	}
}
