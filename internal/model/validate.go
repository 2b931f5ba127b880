package model

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidationError lists the schema violations of a Note, keyed by JSON field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, field := range []string{"title", "content"} {
		if msg, ok := e.Fields[field]; ok {
			msgs = append(msgs, field+": "+msg)
		}
	}
	return "Note validation failed: " + strings.Join(msgs, ", ")
}

// Validate checks the schema rules: title and content required, title at most
// TitleMaxLength characters.
func (n Note) Validate() error {
	err := validatorInstance().Struct(n)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Field() + "." + fe.Tag() {
	case "title.required":
		return "Please enter note title"
	case "content.required":
		return "Please enter note content"
	case "title.max":
		return "Note title cannot exceed 200 characters"
	}
	return fe.Error()
}
