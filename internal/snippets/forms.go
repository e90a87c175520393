package snippets

import (
	"context"
	"regexp"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/afroisalreadyinu/drapes/model"
	"github.com/afroisalreadyinu/drapes/validate"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// NewSnippetForm builds the create/update form. The slug uniqueness check
// needs the acting user: slugs are unique per owner, so the same slug by two
// different users is fine.
func NewSnippetForm(repo Repository) (*validate.Fields, error) {
	unique := func(ctx context.Context, data map[string]any, actor any) []model.FieldError {
		owner, ok := actor.(User)
		if !ok {
			return nil
		}
		_, err := repo.FindUnique(ctx, KindSnippet, []model.Filter{
			{Field: "slug", Value: data["slug"]},
			{Field: "owner_id", Value: owner.ID},
		})
		if err == nil {
			return []model.FieldError{{
				Field:   "slug",
				Code:    "CONFLICT",
				Message: "you already have a snippet with this slug",
			}}
		}
		return nil
	}

	return validate.NewFields(snippetFields(), unique)
}

// NewSnippetUpdateForm builds the same field set without the uniqueness
// check, for updates where the slug legitimately already exists.
func NewSnippetUpdateForm() (*validate.Fields, error) {
	return validate.NewFields(snippetFields())
}

func snippetFields() []validate.Field {
	return []validate.Field{
		{Name: "slug", Validator: validate.Match(slugPattern), Required: true},
		{Name: "title", Validator: validate.MaxLen(120), Required: true},
		{Name: "body", Validator: validate.NonEmpty(), Required: true},
		{Name: "published", Validator: validate.OneOf("true", "false")},
	}
}

// NewFeedbackForm builds the feedback form from an OpenAPI schema, so its
// shape can be shared with API clients.
func NewFeedbackForm() (*validate.Schema, error) {
	schema := openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema().WithMinLength(1).WithMaxLength(2000)).
		WithProperty("rating", openapi3.NewIntegerSchema().WithMin(1).WithMax(5))
	schema.Required = []string{"message", "rating"}

	return validate.NewSchema(schema)
}
