package config

import (
	"reflect"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// Validator is an optional interface for configuration structs that need
// validation beyond the `required` tag. When the struct passed to
// [Loader.Load] implements Validator, Validate is called after required
// fields have been checked.
//
// Validate should return nil for a valid configuration, or an error
// describing the first failure. [*hgerr.Error] values pass through
// unchanged; any other error is wrapped with [hgerr.CodeValidation].
type Validator interface {
	Validate() error
}

// validate runs required-tag validation followed by the optional
// Validator hook. cfg is the original pointer (for the interface
// assertion); rv is the dereferenced struct value.
func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, structured := hgerr.AsError(err); structured {
				return err
			}
			return hgerr.Wrap(err, hgerr.CodeValidation,
				"config: custom validation failed")
		}
	}

	return nil
}

// validateRequired recursively checks that every field tagged
// `required:"true"` holds a non-zero value. path carries the dotted
// field path for error messages (e.g. "OAuth.Issuer").
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return hgerr.Newf(hgerr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}
