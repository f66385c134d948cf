package proposal

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"diaspora-map/internal/models"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps JSON field names to a message.
type FieldErrors map[string]string

// ValidationError blocks a submission before any request is made.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid proposal: " + strings.Join(names, ", ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		// Use JSON tag names in error messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
		})
		validate = v
	})
	return validate
}

// Validate checks a form locally. It returns nil when the form may be sent.
func Validate(form models.ProposalForm) *ValidationError {
	err := getValidator().Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: FieldErrors{"form": err.Error()}}
	}

	fields := FieldErrors{}
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return &ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "httpurl":
		return "Enter a website starting with http:// or https://."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}
