package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
)

var (
	mu       sync.RWMutex
	messages = map[string]string{
		"required":      "field is required",
		"required_with": "must be given together with its pair",
		"gte":           "must not be negative",
		"min":           "is below the minimum",
		"max":           "is above the maximum",
		"oneof":         "has an unsupported value",
		"datetime":      "must be a date in YYYY-MM-DD form",
	}
)

// Rule is a custom string check bound to a `binding` tag. Non-string fields
// fail the rule.
type Rule struct {
	Tag     string
	Message string
	Valid   func(string) bool
}

// RegisterGin installs json field names and the given rules on gin's binding
// engine.
func RegisterGin(rules ...Rule) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mu.Lock()
	defer mu.Unlock()
	for _, r := range rules {
		if r.Tag == "" || r.Valid == nil {
			return fmt.Errorf("invalid rule %q", r.Tag)
		}
		valid := r.Valid
		err := v.RegisterValidation(r.Tag, func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return valid(fl.Field().String())
		})
		if err != nil {
			return fmt.Errorf("failed to register %s rule: %w", r.Tag, err)
		}
		if r.Message != "" {
			messages[r.Tag] = r.Message
		}
	}
	return nil
}

func message(tag string) string {
	mu.RLock()
	defer mu.RUnlock()
	if msg, ok := messages[tag]; ok {
		return msg
	}
	return fmt.Sprintf("failed on the '%s' rule", tag)
}

// FieldErrors maps binding and validation failures onto json field names.
func FieldErrors(err error) map[string]string {
	fields := map[string]string{}

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &verrs):
		for _, e := range verrs {
			fields[e.Field()] = message(e.Tag())
		}
	case errors.As(err, &typeErr):
		fields[typeErr.Field] = fmt.Sprintf("must be a %s", typeErr.Type.String())
	case errors.As(err, &syntaxErr):
		fields["body"] = "malformed JSON"
	case errors.Is(err, io.EOF):
		fields["body"] = "request body is empty"
	case err != nil:
		fields["body"] = err.Error()
	}
	return fields
}

// BindError converts a ShouldBind failure into a 400 ValidationError.
func BindError(err error) error {
	return apperrors.NewValidation("invalid request", FieldErrors(err))
}
