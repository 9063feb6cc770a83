package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statekit/statekit/pkg/pg"
)

// PostgresSource resolves actors from the authorization store. It expects
// the conventional schema:
//
//	actors(id text primary key)
//	actor_permissions(actor_id text, codename text)
//	groups(id bigint primary key, name text)
//	actor_groups(actor_id text, group_id bigint)
//	group_permissions(group_id bigint, codename text)
//
// All lookups are read-only; the source never writes.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource connects to the authorization store using the pg
// package's retrying connector.
func NewPostgresSource(ctx context.Context, cfg pg.Config) (*PostgresSource, error) {
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresSource{pool: pool}, nil
}

// NewPostgresSourceWithPool wraps an existing pool, for callers that share
// one pool across components.
func NewPostgresSourceWithPool(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Close releases the underlying pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}

func (s *PostgresSource) Actor(ctx context.Context, id string) (*Actor, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM actors WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("guard: query actor %q: %w", id, err)
	}
	if !exists {
		return nil, ErrActorNotFound
	}

	actor := &Actor{ID: id}

	if err := s.loadDirectPermissions(ctx, actor); err != nil {
		return nil, err
	}
	if err := s.loadGroups(ctx, actor); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *PostgresSource) loadDirectPermissions(ctx context.Context, actor *Actor) error {
	rows, err := s.pool.Query(ctx,
		`SELECT codename FROM actor_permissions WHERE actor_id = $1 ORDER BY codename`, actor.ID)
	if err != nil {
		return fmt.Errorf("guard: query permissions for %q: %w", actor.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var codename string
		if err := rows.Scan(&codename); err != nil {
			return fmt.Errorf("guard: scan permission: %w", err)
		}
		actor.Permissions = append(actor.Permissions, codename)
	}
	return rows.Err()
}

func (s *PostgresSource) loadGroups(ctx context.Context, actor *Actor) error {
	// One pass over the join keeps this to a single round trip; rows
	// arrive grouped by name so group assembly is a simple scan.
	rows, err := s.pool.Query(ctx, `
		SELECT g.name, gp.codename
		FROM actor_groups ag
		JOIN groups g ON g.id = ag.group_id
		LEFT JOIN group_permissions gp ON gp.group_id = g.id
		WHERE ag.actor_id = $1
		ORDER BY g.name, gp.codename`, actor.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("guard: query groups for %q: %w", actor.ID, err)
	}
	defer rows.Close()

	var current *Group
	for rows.Next() {
		var name string
		var codename *string
		if err := rows.Scan(&name, &codename); err != nil {
			return fmt.Errorf("guard: scan group: %w", err)
		}
		if current == nil || current.Name != name {
			actor.Groups = append(actor.Groups, Group{Name: name})
			current = &actor.Groups[len(actor.Groups)-1]
		}
		if codename != nil {
			current.Permissions = append(current.Permissions, *codename)
		}
	}
	return rows.Err()
}
