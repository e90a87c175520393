package snippets

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afroisalreadyinu/drapes/lookup"
	"github.com/afroisalreadyinu/drapes/model"
)

// Repository is the storage surface the snippet endpoints need: unique
// lookups for the pipeline plus the mutations the form handlers perform.
type Repository interface {
	model.Finder
	CreateSnippet(ctx context.Context, s Snippet) (Snippet, error)
	UpdateSnippet(ctx context.Context, s Snippet) error
	DeleteSnippet(ctx context.Context, id int) error
	HealthCheck(ctx context.Context) error
}

// MemoryRepository keeps users and snippets in process memory. It backs the
// tests and the default server configuration.
type MemoryRepository struct {
	mu     sync.Mutex
	finder *lookup.Memory
	nextID int
	byID   map[int]Snippet
}

// NewMemoryRepository builds an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	finder := lookup.NewMemory()
	finder.Register(KindUser, func(item any, field string) (any, bool) {
		u := item.(User)
		switch field {
		case "id":
			return u.ID, true
		case "username":
			return u.Username, true
		}
		return nil, false
	})

	return &MemoryRepository{finder: finder, nextID: 1, byID: make(map[int]Snippet)}
}

// AddUser seeds an account.
func (r *MemoryRepository) AddUser(u User) {
	r.finder.Add(KindUser, u)
}

// FindUnique implements model.Finder.
func (r *MemoryRepository) FindUnique(ctx context.Context, kind string, filters []model.Filter) (any, error) {
	if kind == KindSnippet {
		return r.findSnippet(filters)
	}
	return r.finder.FindUnique(ctx, kind, filters)
}

func (r *MemoryRepository) findSnippet(filters []model.Filter) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		found   Snippet
		matches int
	)
	for _, s := range r.byID {
		if snippetMatches(s, filters) {
			matches++
			if matches > 1 {
				return nil, model.ErrMultipleInstances
			}
			found = s
		}
	}
	if matches == 0 {
		return nil, model.ErrNoInstance
	}
	return found, nil
}

func snippetMatches(s Snippet, filters []model.Filter) bool {
	for _, f := range filters {
		var value any
		switch f.Field {
		case "id":
			value = s.ID
		case "slug":
			value = s.Slug
		case "owner_id":
			value = s.OwnerID
		default:
			return false
		}
		if fmt.Sprint(value) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

// CreateSnippet implements Repository.
func (r *MemoryRepository) CreateSnippet(_ context.Context, s Snippet) (Snippet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = r.nextID
	r.nextID++
	r.byID[s.ID] = s
	return s, nil
}

// UpdateSnippet implements Repository.
func (r *MemoryRepository) UpdateSnippet(_ context.Context, s Snippet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; !ok {
		return model.ErrNoInstance
	}
	r.byID[s.ID] = s
	return nil
}

// DeleteSnippet implements Repository.
func (r *MemoryRepository) DeleteSnippet(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return model.ErrNoInstance
	}
	delete(r.byID, id)
	return nil
}

// HealthCheck implements Repository.
func (r *MemoryRepository) HealthCheck(context.Context) error { return nil }

// PGRepository stores users and snippets in Postgres, reusing the pipeline's
// Postgres finder for unique lookups.
type PGRepository struct {
	pool   *pgxpool.Pool
	finder *lookup.PG
}

// NewPGRepository builds a Postgres repository on the given pool.
func NewPGRepository(pool *pgxpool.Pool) (*PGRepository, error) {
	finder := lookup.NewPG(pool)

	if err := finder.RegisterTable(KindUser, lookup.Table{
		Name:    "users",
		Columns: []string{"id", "username", "active", "admin"},
		Scan: func(row pgx.Row) (any, error) {
			var u User
			if err := row.Scan(&u.ID, &u.Username, &u.Active, &u.Admin); err != nil {
				return nil, err
			}
			return u, nil
		},
	}); err != nil {
		return nil, err
	}

	if err := finder.RegisterTable(KindSnippet, lookup.Table{
		Name:    "snippets",
		Columns: []string{"id", "slug", "owner_id", "title", "body", "published"},
		Scan: func(row pgx.Row) (any, error) {
			var s Snippet
			if err := row.Scan(&s.ID, &s.Slug, &s.OwnerID, &s.Title, &s.Body, &s.Published); err != nil {
				return nil, err
			}
			return s, nil
		},
	}); err != nil {
		return nil, err
	}

	return &PGRepository{pool: pool, finder: finder}, nil
}

// FindUnique implements model.Finder.
func (r *PGRepository) FindUnique(ctx context.Context, kind string, filters []model.Filter) (any, error) {
	return r.finder.FindUnique(ctx, kind, filters)
}

// CreateSnippet implements Repository.
func (r *PGRepository) CreateSnippet(ctx context.Context, s Snippet) (Snippet, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO snippets (slug, owner_id, title, body, published)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.Slug, s.OwnerID, s.Title, s.Body, s.Published,
	).Scan(&s.ID)
	if err != nil {
		return Snippet{}, fmt.Errorf("snippets: inserting snippet: %w", err)
	}
	return s, nil
}

// UpdateSnippet implements Repository.
func (r *PGRepository) UpdateSnippet(ctx context.Context, s Snippet) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE snippets SET slug = $2, title = $3, body = $4, published = $5 WHERE id = $1`,
		s.ID, s.Slug, s.Title, s.Body, s.Published,
	)
	if err != nil {
		return fmt.Errorf("snippets: updating snippet %d: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNoInstance
	}
	return nil
}

// DeleteSnippet implements Repository.
func (r *PGRepository) DeleteSnippet(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM snippets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("snippets: deleting snippet %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNoInstance
	}
	return nil
}

// HealthCheck implements Repository.
func (r *PGRepository) HealthCheck(ctx context.Context) error {
	return r.finder.HealthCheck(ctx)
}
