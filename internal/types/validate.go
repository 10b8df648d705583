package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func runValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateRun checks a scrape run against the stored-document schema.
// It returns a *ValidationError listing every failed field.
func ValidateRun(run *ScrapeRun) error {
	if run == nil {
		return &ValidationError{Fields: []FieldError{{Field: "run", Rule: "required"}}}
	}

	err := runValidator().Struct(run)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate run %s: %w", run.ID, err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		fields = append(fields, FieldError{
			Field: field,
			Rule:  fe.Tag(),
			Value: fe.Value(),
		})
	}
	return &ValidationError{RunID: run.ID, Fields: fields}
}
