package main

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json names instead of Go field names
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// validateRequest writes a 400 invalid_fields response and returns false when
// v fails its validate tags.
func validateRequest(w http.ResponseWriter, v interface{}) bool {
	err := getValidator().Struct(v)
	if err == nil {
		return true
	}

	fields := []fieldError{}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fe := range validationErrs {
			fields = append(fields, fieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
	}
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "invalid_fields",
		"fields": fields,
	})
	return false
}
