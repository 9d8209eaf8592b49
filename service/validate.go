package service

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	validatorengine "github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"orderhub/domain"
)

// Validator checks request structs and reports the first failure as a
// *domain.ValidationError keyed by the JSON field name.
type Validator struct {
	engine *validatorengine.Validate
}

func NewValidator() *Validator {
	ve := validatorengine.New()
	ve.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{engine: ve}
}

func (v *Validator) Struct(data any) error {
	return v.translate(v.engine.Struct(data), "")
}

func (v *Validator) Var(field string, value any, tag string) error {
	return v.translate(v.engine.Var(value, tag), field)
}

func (v *Validator) translate(err error, field string) error {
	if err == nil {
		return nil
	}
	var errs validatorengine.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	e := errs[0]
	name := field
	if name == "" {
		// Drop the leading struct name: "NewOrder.items[0].quantity".
		name = e.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
	}
	return domain.Invalid(name, describe(e))
}

func describe(e validatorengine.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	}
	return fmt.Sprintf("failed %q check", e.Tag())
}

var statusTag = func() string {
	names := make([]string, len(domain.OrderStatuses))
	for i, s := range domain.OrderStatuses {
		names[i] = string(s)
	}
	return "required,oneof=" + strings.Join(names, " ")
}()

var textPolicy = bluemonday.StrictPolicy()

const maxCleanPasses = 4

// cleanText strips markup from user supplied text and keeps it plain.
// Stripping repeats until a pass changes nothing, so entity-encoded or
// nested tags cannot reappear once decoded. Text that has not settled after
// maxCleanPasses is returned in escaped form.
func cleanText(s string) string {
	for i := 0; i < maxCleanPasses; i++ {
		next := html.UnescapeString(textPolicy.Sanitize(html.UnescapeString(s)))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(textPolicy.Sanitize(s))
}
