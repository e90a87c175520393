package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afroisalreadyinu/drapes/model"
)

// Table maps an entity kind to its Postgres table.
type Table struct {
	// Name is the table name. It is interpolated into queries and must come
	// from configuration, never from request input.
	Name string
	// Columns are the selected columns, in the order Scan expects them.
	Columns []string
	// Scan builds an entity from one result row.
	Scan func(row pgx.Row) (any, error)
}

// PG is a Postgres-backed Finder built on pgx. Tables are registered per
// entity kind at startup.
type PG struct {
	pool   *pgxpool.Pool
	tables map[string]Table
}

// NewPG creates a Postgres finder on the given pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool, tables: make(map[string]Table)}
}

// RegisterTable declares the table for an entity kind.
func (p *PG) RegisterTable(kind string, t Table) error {
	if t.Name == "" || len(t.Columns) == 0 || t.Scan == nil {
		return model.Configf("pg finder: incomplete table for kind %q", kind)
	}
	if _, ok := p.tables[kind]; ok {
		return model.Configf("pg finder: kind %q registered twice", kind)
	}
	p.tables[kind] = t
	return nil
}

// FindUnique implements model.Finder. The query fetches at most two rows so
// ambiguity is detected without counting the whole table.
func (p *PG) FindUnique(ctx context.Context, kind string, filters []model.Filter) (any, error) {
	t, ok := p.tables[kind]
	if !ok {
		return nil, model.Configf("pg finder: unregistered kind %q", kind)
	}
	if len(filters) == 0 {
		return nil, model.Configf("pg finder: empty filters for kind %q", kind)
	}

	var (
		where = make([]string, 0, len(filters))
		args  = make([]any, 0, len(filters))
	)
	for i, f := range filters {
		where = append(where, fmt.Sprintf("%s = $%d", f.Field, i+1))
		args = append(args, f.Value)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 2",
		strings.Join(t.Columns, ", "), t.Name, strings.Join(where, " AND "))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup: querying %s: %w", t.Name, err)
	}
	defer rows.Close()

	var (
		found   any
		matches int
	)
	for rows.Next() {
		matches++
		if matches > 1 {
			return nil, model.ErrMultipleInstances
		}
		found, err = t.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("lookup: scanning %s: %w", t.Name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup: reading %s: %w", t.Name, err)
	}
	if matches == 0 {
		return nil, model.ErrNoInstance
	}
	return found, nil
}

// HealthCheck pings the underlying pool, satisfying readiness probes.
func (p *PG) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
