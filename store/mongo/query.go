package mongo

import (
	"context"
	"errors"
	"regexp"

	"github.com/rbaliyan/mailboxtree/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// FindByPath returns the mailbox at exactly the given path. The name goes
// into an equality filter, never a regex, so wildcard-looking characters
// in it stay inert.
func (m *Mapper) FindByPath(ctx context.Context, path store.MailboxPath) (store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	filter := bson.M{
		"namespace": path.Namespace,
		"user":      path.User,
		"name":      path.Name,
	}

	var doc mailboxDoc
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Mailbox{}, store.ErrNotFound
		}
		return store.Mailbox{}, store.NewStorageError("find-by-path", err)
	}
	return doc.toMailbox(), nil
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

	var doc mailboxDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Mailbox{}, store.ErrNotFound
		}
		return store.Mailbox{}, store.NewStorageError("find-by-id", err)
	}
	return doc.toMailbox(), nil
}

// List returns every mailbox across all tenants.
func (m *Mapper) List(ctx context.Context) ([]store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	cursor, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, store.NewStorageError("list", err)
	}

	var docs []mailboxDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, store.NewStorageError("list", err)
	}

	mailboxes := make([]store.Mailbox, len(docs))
	for i, doc := range docs {
		mailboxes[i] = doc.toMailbox()
	}
	return mailboxes, nil
}

// HasChildren checks for a descendant with a limit-1 count. The parent
// name is regex-quoted before the suffix matcher is appended, so names
// containing regex metacharacters stay literal.
func (m *Mapper) HasChildren(ctx context.Context, mailbox store.Mailbox, delimiter rune) (bool, error) {
	if err := m.checkConnected(); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	// (?s) keeps the suffix matcher honest for names containing newlines.
	pattern := "(?s)^" + regexp.QuoteMeta(mailbox.Path.Name+string(delimiter)) + ".+$"
	filter := bson.M{
		"namespace": mailbox.Path.Namespace,
		"user":      mailbox.Path.User,
		"name":      bson.M{"$regex": pattern},
	}

	count, err := m.collection.CountDocuments(ctx, filter, mongoopts.Count().SetLimit(1))
	if err != nil {
		return false, store.NewStorageError("has-children", err)
	}
	return count > 0, nil
}

// FindWithPathLike translates the query expression into a native filter:
// equality for ExactName, an anchored quoted regex for Wildcard. Any other
// variant falls back to fetching the tenant and filtering with the
// reference matcher.
func (m *Mapper) FindWithPathLike(ctx context.Context, query store.Query) ([]store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	filter := bson.M{
		"namespace": query.Namespace(),
		"user":      query.User(),
	}

	filterInProcess := false
	switch expr := query.Expression().(type) {
	case store.ExactName:
		filter["name"] = string(expr)
	case store.Wildcard:
		filter["name"] = bson.M{"$regex": expr.RegexpPattern()}
	default:
		filterInProcess = true
	}

	cursor, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, store.NewStorageError("find-with-path-like", err)
	}

	var docs []mailboxDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, store.NewStorageError("find-with-path-like", err)
	}

	var mailboxes []store.Mailbox
	for _, doc := range docs {
		mailbox := doc.toMailbox()
		if filterInProcess && !query.Expression().Matches(mailbox.Path.Name) {
			continue
		}
		mailboxes = append(mailboxes, mailbox)
	}
	return mailboxes, nil
}
