package lock

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
)

// PostgresLocker hands out session-level advisory locks. Each lease pins one
// pooled connection; the lock lives until Release or until that session ends.
type PostgresLocker struct {
	db     *sqlx.DB
	prefix string
}

// NewPostgresLocker constructs a locker. Keys are namespaced by prefix.
func NewPostgresLocker(db *sqlx.DB, prefix string) *PostgresLocker {
	if prefix == "" {
		prefix = "lock:"
	}
	return &PostgresLocker{db: db, prefix: prefix}
}

// Acquire tries the named lock without waiting. The ttl is ignored: the
// database drops the lock with the session.
func (l *PostgresLocker) Acquire(ctx context.Context, name string, _ time.Duration) (Lease, error) {
	key := l.prefix + name
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	var locked bool
	if err := conn.QueryRowxContext(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !locked {
		_ = conn.Close()
		return nil, appErrors.Clone(appErrors.ErrLockHeld, fmt.Sprintf("lock %s is held", name))
	}
	return &pgLease{conn: conn, key: key}, nil
}

type pgLease struct {
	conn *sqlx.Conn
	key  string
}

func (l *pgLease) Key() string { return l.key }

func (l *pgLease) Release(ctx context.Context) error {
	var unlocked bool
	err := l.conn.QueryRowxContext(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, l.key).Scan(&unlocked)
	if err != nil || !unlocked {
		// a session still holding the lock must not go back to the pool
		_ = l.conn.Raw(func(interface{}) error { return driver.ErrBadConn })
		_ = l.conn.Close()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
		return fmt.Errorf("release lock %s: not held by this session", l.key)
	}
	return l.conn.Close()
}
