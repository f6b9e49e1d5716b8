package driver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbburn/dbburn/internal/pool"
)

// Factory opens dedicated database sessions for the connection pool. Each
// session pins one driver-level connection (*sql.Conn), so the pool rather
// than database/sql decides how many live connections exist.
type Factory struct {
	db *sql.DB
}

// NewFactory opens the database handle for one dialect. maxSessions caps
// the connections database/sql may hand out underneath the pool.
func NewFactory(d Dialect, p ConnParams, maxSessions int) (*Factory, error) {
	db, err := sql.Open(d.DriverName(), d.DSN(p))
	if err != nil {
		return nil, fmt.Errorf("driver: open %s: %w", d.Kind(), err)
	}
	db.SetMaxOpenConns(maxSessions)
	db.SetMaxIdleConns(maxSessions)
	db.SetConnMaxLifetime(0)
	return &Factory{db: db}, nil
}

// OpenSession pins and returns a single live connection.
func (f *Factory) OpenSession(ctx context.Context) (pool.Session, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("driver: open session: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("driver: ping session: %w", err)
	}
	return &sqlSession{conn: conn}, nil
}

// Exec runs a statement outside the pool, for one-off setup work such as
// seeding the shared contention row.
func (f *Factory) Exec(ctx context.Context, query string, args ...any) error {
	_, err := f.db.ExecContext(ctx, query, args...)
	return err
}

// Close releases the underlying database handle. Sessions still open keep
// their pinned connections until closed individually.
func (f *Factory) Close() error {
	return f.db.Close()
}

type sqlSession struct {
	conn *sql.Conn
}

func (s *sqlSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqlSession) QueryRow(ctx context.Context, query string, args ...any) pool.Row {
	return s.conn.QueryRowContext(ctx, query, args...)
}

func (s *sqlSession) Close() error {
	return s.conn.Close()
}
