// Package validate provides the validator adapter and a set of common
// validators for the argument resolution pipeline, plus whole-body form
// validators for the form dispatch gate.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/afroisalreadyinu/drapes/model"
)

// funcValidator adapts a plain conversion function to model.Validator.
type funcValidator struct {
	fn func(raw any) (any, error)
}

// Func wraps a conversion function as a Validator. Its only job beyond
// delegation is exception translation: any error the wrapped function
// returns is re-expressed as a *model.ValidationError with a human-readable
// message. The argument name is attached by the resolution pipeline.
func Func(fn func(raw any) (any, error)) model.Validator {
	return &funcValidator{fn: fn}
}

// Convert implements model.Validator.
func (v *funcValidator) Convert(_ context.Context, raw any, _ map[string]any) (any, error) {
	value, err := v.fn(raw)
	if err != nil {
		return nil, model.Invalid("", err)
	}
	return value, nil
}

// Int converts string or numeric input into an int.
func Int() model.Validator {
	return Func(func(raw any) (any, error) {
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("must be an integer")
			}
			return int(v), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("must be an integer")
			}
			return n, nil
		default:
			return nil, fmt.Errorf("must be an integer")
		}
	})
}

// NonEmpty requires a non-blank string and returns it trimmed.
func NonEmpty() model.Validator {
	return Func(func(raw any) (any, error) {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be text")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("must not be empty")
		}
		return s, nil
	})
}

// OneOf requires the input to be one of the given options.
func OneOf(options ...string) model.Validator {
	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o] = true
	}
	return Func(func(raw any) (any, error) {
		s, ok := raw.(string)
		if !ok || !allowed[s] {
			return nil, fmt.Errorf("must be one of %s", strings.Join(options, ", "))
		}
		return s, nil
	})
}

// Match requires string input to match the given pattern.
func Match(re *regexp.Regexp) model.Validator {
	return Func(func(raw any) (any, error) {
		s, ok := raw.(string)
		if !ok || !re.MatchString(s) {
			return nil, fmt.Errorf("must match %s", re.String())
		}
		return s, nil
	})
}

// MaxLen requires string input of at most n characters.
func MaxLen(n int) model.Validator {
	return Func(func(raw any) (any, error) {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be text")
		}
		if len([]rune(s)) > n {
			return nil, fmt.Errorf("must be at most %d characters", n)
		}
		return s, nil
	})
}
