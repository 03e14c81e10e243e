// Package journal persists the investigation audit trail to Postgres:
// state snapshots, the message log and the router decisions. The journal is
// append-only and best-effort; the engine runs unchanged when it is disabled.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres implements graph.Journal on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects to the database, applies pending migrations and returns the
// journal.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect journal database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// InvestigationStarted inserts the initial state snapshot.
func (p *Postgres) InvestigationStarted(ctx context.Context, st graph.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO investigations (investigation_id, entity_type, entity_id, state, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (investigation_id) DO NOTHING`,
		st.InvestigationID, st.EntityType, st.EntityID, data, st.StartTime)
	return err
}

// MessageAppended stores one conversation message by sequence number.
// Replays of an already-journaled sequence are no-ops.
func (p *Postgres) MessageAppended(ctx context.Context, investigationID string, seq int, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO investigation_messages (investigation_id, seq, message)
		VALUES ($1, $2, $3)
		ON CONFLICT (investigation_id, seq) DO NOTHING`,
		investigationID, seq, data)
	return err
}

// RoutingRecorded appends one router verdict.
func (p *Postgres) RoutingRecorded(ctx context.Context, investigationID string, dec models.RoutingDecision) error {
	data, err := json.Marshal(dec)
	if err != nil {
		return fmt.Errorf("marshal routing decision: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO routing_decisions (investigation_id, decision)
		VALUES ($1, $2)`,
		investigationID, data)
	return err
}

// InvestigationFinished stores the terminal state snapshot.
func (p *Postgres) InvestigationFinished(ctx context.Context, st graph.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		UPDATE investigations
		SET state = $2, finished_at = $3
		WHERE investigation_id = $1`,
		st.InvestigationID, data, st.EndTime)
	return err
}
