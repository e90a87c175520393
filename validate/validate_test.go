package validate

import (
	"errors"
	"regexp"
	"testing"

	"github.com/afroisalreadyinu/drapes/model"
)

func TestIntConverts(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want int
		ok   bool
	}{
		{"string", "42", 42, true},
		{"padded string", " 7 ", 7, true},
		{"int", 13, 13, true},
		{"int64", int64(9), 9, true},
		{"whole float", float64(3), 3, true},
		{"fractional float", 3.5, 0, false},
		{"word", "abc", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Int().Convert(t.Context(), tt.raw, nil)
			if tt.ok {
				if err != nil {
					t.Fatalf("Convert(%v) error = %v, want nil", tt.raw, err)
				}
				if got != tt.want {
					t.Errorf("Convert(%v) = %v, want %v", tt.raw, got, tt.want)
				}
				return
			}
			if err == nil {
				t.Errorf("Convert(%v) error = nil, want validation error", tt.raw)
			}
		})
	}
}

func TestFuncTranslatesErrors(t *testing.T) {
	boom := errors.New("boom")
	v := Func(func(any) (any, error) { return nil, boom })

	_, err := v.Convert(t.Context(), "x", nil)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Convert() error = %T, want *model.ValidationError", err)
	}
	if ve.Message != "boom" {
		t.Errorf("Message = %q, want %q", ve.Message, "boom")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error chain does not include the original error")
	}
}

func TestNonEmpty(t *testing.T) {
	got, err := NonEmpty().Convert(t.Context(), "  hi  ", nil)
	if err != nil {
		t.Fatalf("Convert() error = %v, want nil", err)
	}
	if got != "hi" {
		t.Errorf("Convert() = %q, want %q", got, "hi")
	}

	if _, err := NonEmpty().Convert(t.Context(), "   ", nil); err == nil {
		t.Errorf("Convert(blank) error = nil, want validation error")
	}
	if _, err := NonEmpty().Convert(t.Context(), 5, nil); err == nil {
		t.Errorf("Convert(non-string) error = nil, want validation error")
	}
}

func TestOneOf(t *testing.T) {
	v := OneOf("draft", "published")

	if _, err := v.Convert(t.Context(), "draft", nil); err != nil {
		t.Errorf("Convert(draft) error = %v, want nil", err)
	}
	if _, err := v.Convert(t.Context(), "deleted", nil); err == nil {
		t.Errorf("Convert(deleted) error = nil, want validation error")
	}
}

func TestMatch(t *testing.T) {
	v := Match(regexp.MustCompile(`^[a-z-]+$`))

	if _, err := v.Convert(t.Context(), "a-slug", nil); err != nil {
		t.Errorf("Convert(a-slug) error = %v, want nil", err)
	}
	if _, err := v.Convert(t.Context(), "Not A Slug", nil); err == nil {
		t.Errorf("Convert(Not A Slug) error = nil, want validation error")
	}
}

func TestMaxLen(t *testing.T) {
	v := MaxLen(3)

	if _, err := v.Convert(t.Context(), "abc", nil); err != nil {
		t.Errorf("Convert(abc) error = %v, want nil", err)
	}
	if _, err := v.Convert(t.Context(), "abcd", nil); err == nil {
		t.Errorf("Convert(abcd) error = nil, want validation error")
	}
}
