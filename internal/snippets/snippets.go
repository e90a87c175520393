// Package snippets is the reference application served by drapesd: users
// publish text snippets, guarded by the request pipeline. It demonstrates
// how entities, permission rules, forms, and endpoints fit together.
package snippets

import (
	"context"
	"fmt"

	"github.com/afroisalreadyinu/drapes/model"
)

// Entity kinds.
const (
	KindUser    = "user"
	KindSnippet = "snippet"
)

// User is an account that owns snippets.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Active   bool   `json:"active"`
	Admin    bool   `json:"admin"`
}

// Kind implements model.Entity.
func (u User) Kind() string { return KindUser }

// IdentityKey implements lookup.Identifiable.
func (u User) IdentityKey() any { return u.ID }

// Snippet is a published piece of text.
type Snippet struct {
	ID        int    `json:"id"`
	Slug      string `json:"slug"`
	OwnerID   int    `json:"owner_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
}

// Kind implements model.Entity.
func (s Snippet) Kind() string { return KindSnippet }

// IdentityKey implements lookup.Identifiable.
func (s Snippet) IdentityKey() any { return s.ID }

// Subjects resolves verified token claims to a stored user, implementing
// web.SubjectSource. Unknown subjects stay anonymous rather than erroring:
// a valid token for a user this store has never seen carries no privileges.
type Subjects struct {
	repo Repository
}

// NewSubjects builds a subject source over the given repository.
func NewSubjects(repo Repository) *Subjects {
	return &Subjects{repo: repo}
}

// CurrentSubject implements web.SubjectSource, matching the token's
// preferred_username claim against stored users.
func (s *Subjects) CurrentSubject(ctx context.Context, claims map[string]any) (model.Entity, error) {
	username, _ := claims["preferred_username"].(string)
	if username == "" {
		return model.Anonymous{}, nil
	}

	entity, err := s.repo.FindUnique(ctx, KindUser, []model.Filter{{Field: "username", Value: username}})
	if err != nil {
		if _, ok := err.(*model.ConfigError); ok {
			return nil, err
		}
		return model.Anonymous{}, nil
	}
	user, ok := entity.(User)
	if !ok {
		return nil, fmt.Errorf("snippets: user lookup returned %T", entity)
	}
	return user, nil
}
