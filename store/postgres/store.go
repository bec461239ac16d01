// Package postgres provides a PostgreSQL implementation of store.Mapper.
//
// Path uniqueness is enforced by a UNIQUE constraint on
// (namespace, user_id, name); Save is a single upsert statement, so the
// existence check and the write are atomic inside the database engine.
// The wildcard grammar is translated to LIKE with '\' as the escape
// character, which keeps '?' and '_' literal exactly as the contract
// requires.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rbaliyan/mailboxtree/store"
)

// Compile-time check
var _ store.Mapper = (*Mapper)(nil)

// uniqueViolation is the PostgreSQL error code raised when an insert or
// update breaks a unique constraint.
const uniqueViolation = pq.ErrorCode("23505")

// Mapper implements store.Mapper using PostgreSQL.
type Mapper struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// mailboxRow mirrors one table row.
type mailboxRow struct {
	ID          string `db:"id"`
	Namespace   string `db:"namespace"`
	UserID      string `db:"user_id"`
	Name        string `db:"name"`
	UIDValidity int64  `db:"uid_validity"`
}

func (r mailboxRow) toMailbox() store.Mailbox {
	return store.Mailbox{
		ID:          store.MailboxID(r.ID),
		Path:        store.NewPath(r.Namespace, r.UserID, r.Name),
		UIDValidity: uint64(r.UIDValidity),
	}
}

// New creates a PostgreSQL mapper with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Mapper {
	o := newOptions(opts...)
	return &Mapper{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a PostgreSQL mapper from a standard sql.DB connection.
func NewFromDB(db *sql.DB, opts ...Option) *Mapper {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect verifies connectivity and initializes the schema.
func (m *Mapper) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&m.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if m.db == nil {
		atomic.StoreInt32(&m.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	if err := m.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&m.connected, 0)
		return store.NewStorageError("connect", err)
	}

	if err := m.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&m.connected, 0)
		return store.NewStorageError("ensure-schema", err)
	}

	m.logger.Info("connected to PostgreSQL", "table", m.opts.table)
	return nil
}

// Close marks the mapper as disconnected.
// The caller is responsible for closing the database connection.
func (m *Mapper) Close(ctx context.Context) error {
	atomic.StoreInt32(&m.connected, 0)
	return nil
}

func (m *Mapper) checkConnected() error {
	if atomic.LoadInt32(&m.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// ensureSchema creates the table and indexes. The unique constraint on the
// path triple is what makes concurrent Save races resolve inside the
// database.
func (m *Mapper) ensureSchema(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			namespace VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			name TEXT NOT NULL,
			uid_validity BIGINT NOT NULL,
			CONSTRAINT %s_path_unique UNIQUE (namespace, user_id, name)
		)
	`, m.opts.table, m.opts.table)

	if _, err := m.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_tenant ON %s(namespace, user_id)`,
		m.opts.table, m.opts.table)
	if _, err := m.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a unique-constraint failure.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
