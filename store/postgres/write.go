package postgres

import (
	"context"
	"fmt"

	"github.com/rbaliyan/mailboxtree/store"
)

// Save persists the mailbox as a single upsert keyed by id. A conflict on
// the path unique constraint surfaces as ErrMailboxExists; the database
// resolves concurrent saves of the same path, so exactly one wins.
func (m *Mapper) Save(ctx context.Context, mailbox store.Mailbox) (store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	if mailbox.ID.IsZero() {
		mailbox.ID = m.opts.generateID()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, namespace, user_id, name, uid_validity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET namespace = EXCLUDED.namespace,
		    user_id = EXCLUDED.user_id,
		    name = EXCLUDED.name
	`, m.opts.table)

	_, err := m.db.ExecContext(ctx, query,
		string(mailbox.ID),
		mailbox.Path.Namespace,
		mailbox.Path.User,
		mailbox.Path.Name,
		int64(mailbox.UIDValidity),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.Mailbox{}, store.ErrMailboxExists
		}
		return store.Mailbox{}, store.NewStorageError("save", err)
	}

	return mailbox, nil
}

// Delete removes the record by id, or by path when the id is unassigned.
func (m *Mapper) Delete(ctx context.Context, mailbox store.Mailbox) error {
	if err := m.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	var query string
	var args []any
	if !mailbox.ID.IsZero() {
		query = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, m.opts.table)
		args = []any{string(mailbox.ID)}
	} else {
		query = fmt.Sprintf(
			`DELETE FROM %s WHERE namespace = $1 AND user_id = $2 AND name = $3`,
			m.opts.table)
		args = []any{mailbox.Path.Namespace, mailbox.Path.User, mailbox.Path.Name}
	}

	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.NewStorageError("delete", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.NewStorageError("delete", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
