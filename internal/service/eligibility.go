package service

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// PhaseFast marks filters evaluated synchronously at admission time.
const PhaseFast = "FAST"

// EligibilityEvaluator checks a user profile against activity filters.
type EligibilityEvaluator struct{}

// NewEligibilityEvaluator creates a new EligibilityEvaluator.
func NewEligibilityEvaluator() *EligibilityEvaluator {
	return &EligibilityEvaluator{}
}

// Evaluate returns nil when profile satisfies every FAST-phase filter.
// Filters of other phases are skipped. A nil profile only fails when at
// least one FAST filter applies.
func (e *EligibilityEvaluator) Evaluate(profile *model.UserProfile, filters []model.FilterDetail) error {
	for _, f := range filters {
		if f.Phase != PhaseFast {
			continue
		}
		if profile == nil {
			return fmt.Errorf("%w: no profile", ErrIneligibleUser)
		}

		var ok bool
		switch f.Type {
		case "AGE":
			ok = matchAge(profile.Age, f.Operator, f.Values)
		case "GRADE":
			ok = matchGrade(profile.Grade, f.Operator, f.Values)
		default:
			return fmt.Errorf("%w: unsupported filter type %q", ErrIneligibleUser, f.Type)
		}
		if !ok {
			return fmt.Errorf("%w: %s %s", ErrIneligibleUser, f.Type, f.Operator)
		}
	}
	return nil
}

// matchAge evaluates an AGE filter. Range operators take [upper, lower].
func matchAge(age *int, operator string, values []string) bool {
	if age == nil || len(values) == 0 {
		return false
	}
	first, err := strconv.Atoi(values[0])
	if err != nil {
		return false
	}

	between := func() (bool, bool) {
		if len(values) != 2 {
			return false, false
		}
		lower, err := strconv.Atoi(values[1])
		if err != nil {
			return false, false
		}
		return lower <= *age && *age <= first, true
	}

	switch operator {
	case "GTE":
		return *age >= first
	case "LTE":
		return *age <= first
	case "NOT_GTE":
		return *age < first
	case "NOT_LTE":
		return *age > first
	case "BETWEEN":
		in, ok := between()
		return ok && in
	case "NOT_BETWEEN":
		in, ok := between()
		return ok && !in
	}
	return false
}

func matchGrade(grade, operator string, values []string) bool {
	if grade == "" || len(values) == 0 {
		return false
	}
	switch operator {
	case "IN":
		return slices.Contains(values, grade)
	case "NOT_IN":
		return !slices.Contains(values, grade)
	}
	return false
}
