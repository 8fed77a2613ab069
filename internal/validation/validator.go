// Package validation wraps go-playground/validator with a shared instance and
// flattens its errors into readable messages.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"product-insights-go/internal/types"
)

// ErrDuplicateProductID is returned when a batch repeats a product id.
var ErrDuplicateProductID = errors.New("duplicate product id")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError describes one failed rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
	Value any
}

func (e FieldError) Error() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "gte":
		return fmt.Sprintf("%s must be >= %s (got %v)", e.Field, e.Param, e.Value)
	case "gt":
		return fmt.Sprintf("%s must be > %s (got %v)", e.Field, e.Param, e.Value)
	case "lte":
		return fmt.Sprintf("%s must be <= %s (got %v)", e.Field, e.Param, e.Value)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", e.Field, e.Param, e.Value)
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field, e.Tag)
	}
}

// Errors is returned by Struct when one or more rules fail.
type Errors []FieldError

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}

// Recommendations validates every record and reports the first bad index.
// Product ids must be unique within the batch.
func Recommendations(recs []types.Recommendation) error {
	seen := make(map[int]int, len(recs))
	for i := range recs {
		if err := Struct(&recs[i]); err != nil {
			return fmt.Errorf("recommendation %d: %w", i, err)
		}
		if j, ok := seen[recs[i].ProductID]; ok {
			return fmt.Errorf("recommendation %d: %w %d (also at %d)", i, ErrDuplicateProductID, recs[i].ProductID, j)
		}
		seen[recs[i].ProductID] = i
	}
	return nil
}

func Profile(p types.UserProfile) error {
	if err := Struct(&p); err != nil {
		return fmt.Errorf("profile %d: %w", p.UserID, err)
	}
	return nil
}
