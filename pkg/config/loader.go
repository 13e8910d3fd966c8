// Package config loads configuration for Homeglass services from struct tag
// defaults, optional YAML/JSON files, and environment variables. Values are
// resolved in priority order (highest wins):
//
//	envDefault struct tags  (lowest)
//	YAML/JSON config file   (middle)
//	environment variables   (highest)
//
// This mirrors how the original deployment works: code carries sensible
// defaults, a mounted config file provides per-environment overrides, and
// env vars (from the container runtime or a .env file) take final precedence.
//
// # Struct tags
//
//   - `env:"VAR"` — maps the field to an environment variable
//   - `envDefault:"value"` — default applied when the field is zero-valued
//   - `required:"true"` — loading fails if the field remains zero
//
// Nested structs accumulate env prefixes: a struct field tagged
// `env:"POSTGRES"` containing a field tagged `env:"HOST"` reads from
// POSTGRES_HOST. Fields also need `yaml`/`json` tags for file loading.
//
// # Usage
//
//	type Settings struct {
//	    SecretKey    string `env:"SECRET_KEY" yaml:"secret_key" required:"true"`
//	    DisableOAuth bool   `env:"DISABLE_OAUTH" envDefault:"false" yaml:"disable_oauth"`
//	}
//
//	settings := config.MustLoad[Settings](config.New().WithFile("config.yaml"))
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// durationType caches the reflect.Type of time.Duration. Duration fields
// have Kind() == Int64 but must be parsed with time.ParseDuration, so the
// loader needs to tell them apart from plain integers.
var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves configuration with the layered strategy described in the
// package documentation. Create one with [New], customize it with
// [Loader.WithEnvPrefix] and [Loader.WithFile], then call [Loader.Load].
//
// A Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
}

// New creates a Loader that reads environment variables only (no file,
// no prefix).
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix sets a prefix prepended (with an underscore) to every
// environment variable name derived from "env" tags. The prefix is
// uppercased; an empty prefix disables prefixing. Returns the Loader for
// chaining.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path of an optional YAML (.yaml/.yml) or JSON (.json)
// configuration file. A missing file is not an error; an unsupported
// extension is. Paths containing ".." are rejected. Returns the Loader
// for chaining.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, using
// the layered resolution order. After loading, fields tagged
// `required:"true"` must be non-zero, and if cfg implements [Validator]
// its Validate method is called.
//
// Returns a [*hgerr.Error] with [hgerr.CodeInternalConfiguration] for
// loading failures, or a validation code for validation failures.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return hgerr.New(hgerr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return hgerr.New(hgerr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	if err := applyEnv(rv, l.envPrefix); err != nil {
		return err
	}

	return validate(cfg, rv)
}

// MustLoad loads configuration into a zero value of T and returns it,
// panicking on failure. Intended for use in func main, where an invalid
// configuration should prevent startup.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile unmarshals the configured file into cfg. Missing files are
// silently skipped so that file configuration stays optional.
func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return hgerr.New(hgerr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return hgerr.Wrapf(err, hgerr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return hgerr.Wrapf(err, hgerr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return hgerr.Wrapf(err, hgerr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return hgerr.Newf(hgerr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}

	return nil
}

// applyDefaults walks the struct and applies envDefault tag values to
// fields that still hold their zero value.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}

		if err := setField(field, tag); err != nil {
			return hgerr.Wrapf(err, hgerr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}

	return nil
}

// applyEnv walks the struct and sets fields from the environment variables
// named by their "env" tags. A nested struct's env tag joins the prefix
// chain, so OAuth.Issuer tagged env:"ISSUER" inside a struct tagged
// env:"OAUTH" reads OAUTH_ISSUER.
func applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			nestedPrefix := prefix
			if envTag != "" {
				if nestedPrefix != "" {
					nestedPrefix += "_" + envTag
				} else {
					nestedPrefix = envTag
				}
			}
			if err := applyEnv(field, nestedPrefix); err != nil {
				return err
			}
			continue
		}

		if envTag == "" {
			continue
		}

		envKey := envTag
		if prefix != "" {
			envKey = prefix + "_" + envTag
		}

		val, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		if err := setField(field, val); err != nil {
			return hgerr.Wrapf(err, hgerr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, envKey)
		}
	}

	return nil
}

// setField parses value and assigns it to field. Supported kinds: string
// (including named string types such as auth.Secret), bool, signed
// integers, time.Duration, and []string (comma-separated).
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		// MakeSlice with the field's own type keeps named slice types
		// (type Origins []string) assignable.
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}
