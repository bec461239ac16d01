package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rbaliyan/mailboxtree/store"
)

const mailboxColumns = "id, namespace, user_id, name, uid_validity"

// FindByPath returns the mailbox at exactly the given path. The name is
// compared with plain equality, never LIKE, so wildcard-looking characters
// in it stay inert.
func (m *Mapper) FindByPath(ctx context.Context, path store.MailboxPath) (store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE namespace = $1 AND user_id = $2 AND name = $3
	`, mailboxColumns, m.opts.table)

	var row mailboxRow
	err := m.db.GetContext(ctx, &row, query, path.Namespace, path.User, path.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Mailbox{}, store.ErrNotFound
		}
		return store.Mailbox{}, store.NewStorageError("find-by-path", err)
	}
	return row.toMailbox(), nil
}

// FindByID returns the mailbox with the given id.
func (m *Mapper) FindByID(ctx context.Context, id store.MailboxID) (store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}
	if id.IsZero() {
		return store.Mailbox{}, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, mailboxColumns, m.opts.table)

	var row mailboxRow
	err := m.db.GetContext(ctx, &row, query, string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Mailbox{}, store.ErrNotFound
		}
		return store.Mailbox{}, store.NewStorageError("find-by-id", err)
	}
	return row.toMailbox(), nil
}

// List returns every mailbox across all tenants.
func (m *Mapper) List(ctx context.Context) ([]store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s`, mailboxColumns, m.opts.table)

	var rows []mailboxRow
	if err := m.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, store.NewStorageError("list", err)
	}

	mailboxes := make([]store.Mailbox, len(rows))
	for i, row := range rows {
		mailboxes[i] = row.toMailbox()
	}
	return mailboxes, nil
}

// HasChildren checks for a descendant with a single EXISTS query. The
// parent name is escaped before the trailing '%' is appended, so names
// containing LIKE metacharacters stay literal.
func (m *Mapper) HasChildren(ctx context.Context, mailbox store.Mailbox, delimiter rune) (bool, error) {
	if err := m.checkConnected(); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE namespace = $1 AND user_id = $2 AND name LIKE $3 ESCAPE '\'
		)
	`, m.opts.table)

	pattern := store.EscapeSQLLike(mailbox.Path.Name+string(delimiter)) + "%"

	var has bool
	err := m.db.GetContext(ctx, &has, query,
		mailbox.Path.Namespace, mailbox.Path.User, pattern)
	if err != nil {
		return false, store.NewStorageError("has-children", err)
	}
	return has, nil
}

// FindWithPathLike translates the query expression into a native
// predicate: equality for ExactName, escaped LIKE for Wildcard. Any other
// variant falls back to fetching the tenant and filtering with the
// reference matcher, so the semantics stay identical either way.
func (m *Mapper) FindWithPathLike(ctx context.Context, query store.Query) ([]store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	base := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE namespace = $1 AND user_id = $2
	`, mailboxColumns, m.opts.table)
	args := []any{query.Namespace(), query.User()}

	filterInProcess := false
	switch expr := query.Expression().(type) {
	case store.ExactName:
		base += ` AND name = $3`
		args = append(args, string(expr))
	case store.Wildcard:
		base += ` AND name LIKE $3 ESCAPE '\'`
		args = append(args, expr.SQLLikePattern())
	default:
		filterInProcess = true
	}

	var rows []mailboxRow
	if err := m.db.SelectContext(ctx, &rows, base, args...); err != nil {
		return nil, store.NewStorageError("find-with-path-like", err)
	}

	var mailboxes []store.Mailbox
	for _, row := range rows {
		mailbox := row.toMailbox()
		if filterInProcess && !query.Expression().Matches(mailbox.Path.Name) {
			continue
		}
		mailboxes = append(mailboxes, mailbox)
	}
	return mailboxes, nil
}
