// Package postgres provides the Postgres-backed server repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mxindex/mxindex/internal/catalog"
)

// ServerStoreConfig controls the Postgres connection pool.
type ServerStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ServerStore persists server records in Postgres. The servers table carries
// a uniqueness constraint on domain; that constraint, not application
// locking, is what makes concurrent first-time inserts race-safe.
//
// Expected schema:
//
//	CREATE TABLE servers (
//		id BIGSERIAL PRIMARY KEY,
//		domain TEXT NOT NULL UNIQUE,
//		delegated_server TEXT,
//		name TEXT,
//		description TEXT,
//		logo_url TEXT,
//		theme TEXT,
//		registration_open BOOLEAN,
//		public_rooms_count INTEGER,
//		room_versions TEXT,
//		version TEXT,
//		federation_version TEXT,
//		created_at TIMESTAMPTZ NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL
//	);
type ServerStore struct {
	pool  pgxPool
	clock catalog.Clock
}

// NewServerStore creates a Postgres-backed ServerStore using the provided config.
func NewServerStore(ctx context.Context, cfg ServerStoreConfig, clock catalog.Clock) (*ServerStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewServerStoreWithPool(pool, clock)
}

// NewServerStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewServerStoreWithPool(pool pgxPool, clock catalog.Clock) (*ServerStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &ServerStore{pool: pool, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *ServerStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const serverColumns = `id, domain, delegated_server, name, description, logo_url, theme,
	registration_open, public_rooms_count, room_versions, version, federation_version,
	created_at, updated_at`

const upsertSQL = `
INSERT INTO servers (
	domain,
	delegated_server,
	name,
	description,
	logo_url,
	theme,
	registration_open,
	public_rooms_count,
	room_versions,
	version,
	federation_version,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (domain) DO UPDATE SET
	delegated_server = EXCLUDED.delegated_server,
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	logo_url = EXCLUDED.logo_url,
	theme = EXCLUDED.theme,
	registration_open = EXCLUDED.registration_open,
	public_rooms_count = EXCLUDED.public_rooms_count,
	room_versions = EXCLUDED.room_versions,
	version = EXCLUDED.version,
	federation_version = EXCLUDED.federation_version,
	updated_at = EXCLUDED.updated_at
RETURNING ` + serverColumns

// Upsert inserts the record or, when the domain is already present, replaces
// every fetched field while preserving the original created_at. The loser of
// a concurrent first-insert race lands on the update path instead of erroring.
func (s *ServerStore) Upsert(ctx context.Context, record catalog.ServerRecord) (catalog.ServerRecord, error) {
	if record.Domain == "" {
		return catalog.ServerRecord{}, fmt.Errorf("record domain is required")
	}
	now := s.clock.Now()
	row := s.pool.QueryRow(ctx, upsertSQL,
		record.Domain,
		record.DelegatedServer,
		record.Name,
		record.Description,
		record.LogoURL,
		record.Theme,
		record.RegistrationOpen,
		record.PublicRoomsCount,
		catalog.JoinRoomVersions(record.RoomVersions),
		record.Version,
		record.FederationVersion,
		now,
		now,
	)
	stored, err := scanServer(row)
	if err != nil {
		return catalog.ServerRecord{}, storageErr("upsert server", err)
	}
	return stored, nil
}

// GetByDomain fetches one record, returning catalog.ErrNotFound when absent.
func (s *ServerStore) GetByDomain(ctx context.Context, domain string) (catalog.ServerRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE domain = $1`,
		domain,
	)
	record, err := scanServer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ServerRecord{}, catalog.ErrNotFound
		}
		return catalog.ServerRecord{}, storageErr("get server", err)
	}
	return record, nil
}

// ListFiltered executes the search filter and returns one page of records
// plus the total match count before pagination.
func (s *ServerStore) ListFiltered(ctx context.Context, filter catalog.SearchFilter) (catalog.SearchResult, error) {
	filter = filter.Normalize()
	q := buildSearch(filter)

	var total int64
	if err := s.pool.QueryRow(ctx, q.countSQL, q.countArgs...).Scan(&total); err != nil {
		return catalog.SearchResult{}, storageErr("count servers", err)
	}

	rows, err := s.pool.Query(ctx, q.pageSQL, q.pageArgs...)
	if err != nil {
		return catalog.SearchResult{}, storageErr("list servers", err)
	}
	defer rows.Close()

	servers := make([]catalog.ServerRecord, 0, filter.Limit)
	for rows.Next() {
		record, err := scanServer(rows)
		if err != nil {
			return catalog.SearchResult{}, storageErr("scan server", err)
		}
		servers = append(servers, record)
	}
	if err := rows.Err(); err != nil {
		return catalog.SearchResult{}, storageErr("iterate servers", err)
	}

	return catalog.SearchResult{
		Servers: servers,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ListStale returns up to limit domains whose last update predates cutoff,
// oldest first. The background refresher uses this to pick re-index work.
func (s *ServerStore) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT domain FROM servers WHERE updated_at < $1 ORDER BY updated_at ASC LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, storageErr("list stale servers", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, storageErr("scan stale server", err)
		}
		domains = append(domains, domain)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate stale servers", err)
	}
	return domains, nil
}

// Ping verifies the backend is reachable, for readiness checks.
func (s *ServerStore) Ping(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "SELECT 1"); err != nil {
		return storageErr("ping postgres", err)
	}
	return nil
}

func scanServer(row pgx.Row) (catalog.ServerRecord, error) {
	var (
		record       catalog.ServerRecord
		roomVersions *string
	)
	err := row.Scan(
		&record.ID,
		&record.Domain,
		&record.DelegatedServer,
		&record.Name,
		&record.Description,
		&record.LogoURL,
		&record.Theme,
		&record.RegistrationOpen,
		&record.PublicRoomsCount,
		&roomVersions,
		&record.Version,
		&record.FederationVersion,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return catalog.ServerRecord{}, err
	}
	record.RoomVersions = catalog.SplitRoomVersions(roomVersions)
	return record, nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	// Caller cancellation and deadlines are not a backend outage; keep them
	// visible so the API maps them to a timeout rather than 503.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, catalog.ErrStorageUnavailable, err)
}
