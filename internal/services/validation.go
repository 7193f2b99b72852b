package services

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"agency_tracker/internal/apperrors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and reports the first failure as an
// apperrors.ValidationError keyed by the json field name.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.Validation(fe.Field(), describeTag(fe))
	}
	return apperrors.Validation("", err.Error())
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s element(s)", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

func requireName(field, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperrors.Validation(field, "is required")
	}
	return trimmed, nil
}

var errPercentageRange = apperrors.Validation("completion_percentage", "must be between 0 and 100")

// checkPercentage rejects a raw value outside 0..100, then rounds half-up.
// Task create and update use it.
func checkPercentage(v float64) (int, error) {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return 0, errPercentageRange
	}
	return int(math.Floor(v + 0.5)), nil
}

// roundPercentage rounds half-up first and validates the result, so 100.4
// becomes 100 and -0.3 becomes 0.
func roundPercentage(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errPercentageRange
	}
	r := math.Floor(v + 0.5)
	if r < 0 || r > 100 {
		return 0, errPercentageRange
	}
	return int(r), nil
}

// validateOrdering checks that requested is a permutation of the current
// sibling ids.
func validateOrdering(current []uint, requested []uint) error {
	if len(requested) != len(current) {
		return apperrors.Validation("ids", fmt.Sprintf("expected %d ids, got %d", len(current), len(requested)))
	}
	known := make(map[uint]bool, len(current))
	for _, id := range current {
		known[id] = false
	}
	for _, id := range requested {
		seen, ok := known[id]
		if !ok {
			return apperrors.Validation("ids", fmt.Sprintf("id %d is not in scope", id))
		}
		if seen {
			return apperrors.Validation("ids", fmt.Sprintf("id %d is listed twice", id))
		}
		known[id] = true
	}
	return nil
}
