package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ErrInvalidValue is returned when a value does not fit the key it is set for.
var ErrInvalidValue = errors.New("invalid value")

// Check validates a value already decoded to its field's type.
type Check func(value any) error

func oneOf(options ...string) Check {
	return func(value any) error {
		if s, ok := value.(string); ok && !lo.Contains(options, s) {
			return fmt.Errorf("%q is not one of %s", s, strings.Join(options, ", "))
		}
		return nil
	}
}

func between(low, high int) Check {
	return func(value any) error {
		if n, ok := value.(int); ok && (n < low || n > high) {
			return fmt.Errorf("%d is outside %d..%d", n, low, high)
		}
		return nil
	}
}

func atLeast(low int) Check {
	return func(value any) error {
		if n, ok := value.(int); ok && n < low {
			return fmt.Errorf("%d is below %d", n, low)
		}
		return nil
	}
}

// duration accepts Go durations such as 2s or 10m, never negative ones.
func duration(value any) error {
	d, err := time.ParseDuration(cast.ToString(value))
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("%s is negative", d)
	}
	return nil
}

func httpURL(value any) error {
	u, err := url.Parse(cast.ToString(value))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", value)
	}
	return nil
}

// Parse decodes raw command line values into the type of the field's default
// and runs the field's checks on the result.
func (f *Field) Parse(raw ...string) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s needs a value", ErrInvalidValue, f.Key)
	}

	var (
		value any
		err   error
	)

	switch f.Value.(type) {
	case []string:
		value = raw
	case string, int, bool:
		if len(raw) > 1 {
			return nil, fmt.Errorf("%w: %s takes a single value, got %d", ErrInvalidValue, f.Key, len(raw))
		}
		value, err = f.decode(raw[0])
	default:
		err = fmt.Errorf("unsupported type %T", f.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrInvalidValue, f.Key, err)
	}

	for _, check := range f.checks {
		if err := check(value); err != nil {
			return nil, fmt.Errorf("%w for %s: %w", ErrInvalidValue, f.Key, err)
		}
	}

	return value, nil
}

func (f *Field) decode(s string) (any, error) {
	switch f.Value.(type) {
	case int:
		return cast.ToIntE(s)
	case bool:
		return cast.ToBoolE(s)
	default:
		return s, nil
	}
}

// Validate checks the value every key currently resolves to, whether it came
// from the config file, the environment or the default.
func Validate() error {
	keys := lo.Keys(Default)
	slices.Sort(keys)

	var errs []error
	for _, k := range keys {
		field := Default[k]

		raw := []string{cast.ToString(viper.Get(k))}
		if _, ok := field.Value.([]string); ok {
			if raw = cast.ToStringSlice(viper.Get(k)); len(raw) == 0 {
				continue
			}
		}

		if _, err := field.Parse(raw...); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
