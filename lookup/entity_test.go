package lookup

import (
	"errors"
	"testing"

	"github.com/afroisalreadyinu/drapes/model"
)

type owner struct {
	ID   int
	Name string
}

func (o owner) Kind() string     { return "owner" }
func (o owner) IdentityKey() any { return o.ID }

func ownerField(item any, field string) (any, bool) {
	o := item.(owner)
	switch field {
	case "id":
		return o.ID, true
	case "name":
		return o.Name, true
	}
	return nil, false
}

func entityTestFinder() *Memory {
	m := NewMemory()
	m.Register("song", songField)
	m.Register("owner", ownerField)
	m.Add("song",
		song{ID: 1, Slug: "foo", Owner: 7},
		song{ID: 2, Slug: "foo", Owner: 9},
	)
	m.Add("owner", owner{ID: 7, Name: "ulas"})
	return m
}

func TestEntityDefaultsToIdentityField(t *testing.T) {
	v := MustEntity("song", entityTestFinder())

	got, err := v.Convert(t.Context(), 1, nil)
	if err != nil {
		t.Fatalf("Convert() error = %v, want nil", err)
	}
	if got.(song).Slug != "foo" {
		t.Errorf("Convert() = %v, want the song with id 1", got)
	}
}

func TestEntityCompositeWithResolvedReference(t *testing.T) {
	finder := entityTestFinder()
	v := MustEntity("song", finder, Raw("slug"), Resolved("owner", "owner"))

	// The resolved owner entity contributes its identity key, not itself.
	resolved := map[string]any{"owner": owner{ID: 7, Name: "ulas"}}
	got, err := v.Convert(t.Context(), "foo", resolved)
	if err != nil {
		t.Fatalf("Convert() error = %v, want nil", err)
	}
	if got.(song).ID != 1 {
		t.Errorf("Convert() = %v, want the song owned by 7", got)
	}
}

func TestEntityLiteralFilter(t *testing.T) {
	v := MustEntity("song", entityTestFinder(), Raw("slug"), Literal("owner", 9))

	got, err := v.Convert(t.Context(), "foo", nil)
	if err != nil {
		t.Fatalf("Convert() error = %v, want nil", err)
	}
	if got.(song).ID != 2 {
		t.Errorf("Convert() = %v, want the song owned by 9", got)
	}
}

func TestEntityNotFoundIsValidationError(t *testing.T) {
	v := MustEntity("song", entityTestFinder())

	_, err := v.Convert(t.Context(), 99, nil)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Convert() error = %T, want *model.ValidationError", err)
	}
	if !errors.Is(err, model.ErrNoInstance) {
		t.Errorf("error chain does not include ErrNoInstance")
	}
}

func TestEntityAmbiguousIsValidationError(t *testing.T) {
	v := MustEntity("song", entityTestFinder(), Raw("slug"))

	_, err := v.Convert(t.Context(), "foo", nil)
	if !errors.Is(err, model.ErrMultipleInstances) {
		t.Errorf("Convert() error = %v, want ErrMultipleInstances in chain", err)
	}
}

func TestEntityDanglingReferenceIsConfigError(t *testing.T) {
	v := MustEntity("song", entityTestFinder(), Raw("slug"), Resolved("owner", "missing"))

	_, err := v.Convert(t.Context(), "foo", map[string]any{})
	var ce *model.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("Convert() error = %T, want *model.ConfigError", err)
	}
}

func TestEntityConfigValidation(t *testing.T) {
	finder := entityTestFinder()

	if _, err := Entity("", finder); err == nil {
		t.Errorf("Entity(empty kind) error = nil, want configuration error")
	}
	if _, err := Entity("song", nil); err == nil {
		t.Errorf("Entity(nil finder) error = nil, want configuration error")
	}
	if _, err := Entity("song", finder, Raw("slug"), Raw("slug")); err == nil {
		t.Errorf("Entity(duplicate field) error = nil, want configuration error")
	}
}
