// Package cached provides a Redis read-through cache decorator for any
// store.Mapper. Point lookups (FindByPath, FindByID) are cached with a
// TTL; writes invalidate before they return. Search operations pass
// through untouched, since their correctness depends on a snapshot the
// backend owns.
//
// The cache is strictly an accelerator: every Redis failure is logged and
// the call falls through to the backend, so a broken cache degrades to the
// backend's own behavior instead of surfacing as a storage failure.
package cached

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rbaliyan/mailboxtree/store"
	"github.com/redis/go-redis/v9"
)

// Compile-time check
var _ store.Mapper = (*Mapper)(nil)

// Mapper decorates a backend mapper with Redis caching.
type Mapper struct {
	backend store.Mapper
	client  redis.UniversalClient
	opts    *options
	logger  *slog.Logger
}

// cacheEntry is the JSON shape stored under both key kinds.
type cacheEntry struct {
	ID          string `json:"id"`
	Namespace   string `json:"namespace"`
	User        string `json:"user"`
	Name        string `json:"name"`
	UIDValidity uint64 `json:"uid_validity"`
}

func toEntry(m store.Mailbox) cacheEntry {
	return cacheEntry{
		ID:          string(m.ID),
		Namespace:   m.Path.Namespace,
		User:        m.Path.User,
		Name:        m.Path.Name,
		UIDValidity: m.UIDValidity,
	}
}

func (e cacheEntry) toMailbox() store.Mailbox {
	return store.Mailbox{
		ID:          store.MailboxID(e.ID),
		Path:        store.NewPath(e.Namespace, e.User, e.Name),
		UIDValidity: e.UIDValidity,
	}
}

// New creates a cache decorator around backend.
func New(backend store.Mapper, client redis.UniversalClient, opts ...Option) *Mapper {
	o := newOptions(opts...)
	return &Mapper{
		backend: backend,
		client:  client,
		opts:    o,
		logger:  o.logger,
	}
}

// Connect connects the backend and verifies the Redis connection.
func (m *Mapper) Connect(ctx context.Context) error {
	if err := m.backend.Connect(ctx); err != nil {
		return err
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		// Cache being down is not fatal; the decorator degrades to
		// pass-through.
		m.logger.Warn("redis unavailable, cache disabled until it recovers", "error", err)
	}
	return nil
}

// Close closes the backend. The caller owns the Redis client.
func (m *Mapper) Close(ctx context.Context) error {
	return m.backend.Close(ctx)
}

func (m *Mapper) idKey(id store.MailboxID) string {
	return m.opts.keyPrefix + "id:" + string(id)
}

func (m *Mapper) pathKey(path store.MailboxPath) string {
	// \x00 cannot occur in parsed mailbox input, so it is a safe joiner.
	return m.opts.keyPrefix + "path:" + path.Namespace + "\x00" + path.User + "\x00" + path.Name
}

func (m *Mapper) cacheGet(ctx context.Context, key string) (store.Mailbox, bool) {
	raw, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			m.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return store.Mailbox{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		m.logger.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		m.client.Del(ctx, key)
		return store.Mailbox{}, false
	}
	return entry.toMailbox(), true
}

func (m *Mapper) cachePut(ctx context.Context, mailbox store.Mailbox) {
	raw, err := json.Marshal(toEntry(mailbox))
	if err != nil {
		return
	}
	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.idKey(mailbox.ID), raw, m.opts.ttl)
	pipe.Set(ctx, m.pathKey(mailbox.Path), raw, m.opts.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("cache put failed", "mailbox", mailbox.ID, "error", err)
	}
}

func (m *Mapper) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		m.logger.Warn("cache invalidation failed", "error", err)
	}
}

// Save writes through to the backend and invalidates the touched keys.
// On a rename the old path entry is looked up first so it can be dropped
// too; the stale-read window would otherwise outlive the rename by a TTL.
func (m *Mapper) Save(ctx context.Context, mailbox store.Mailbox) (store.Mailbox, error) {
	var staleKeys []string
	if !mailbox.ID.IsZero() {
		if previous, err := m.backend.FindByID(ctx, mailbox.ID); err == nil && previous.Path != mailbox.Path {
			staleKeys = append(staleKeys, m.pathKey(previous.Path))
		}
	}

	saved, err := m.backend.Save(ctx, mailbox)
	if err != nil {
		return store.Mailbox{}, err
	}

	staleKeys = append(staleKeys, m.idKey(saved.ID), m.pathKey(saved.Path))
	m.invalidate(ctx, staleKeys...)
	return saved, nil
}

// Delete removes the record from the backend and drops its cache entries.
// The caller's copy may predate a rename, so the live path is resolved
// from the backend first; otherwise the current path's entry would keep
// serving the deleted mailbox for up to a TTL.
func (m *Mapper) Delete(ctx context.Context, mailbox store.Mailbox) error {
	keys := []string{m.pathKey(mailbox.Path)}
	if !mailbox.ID.IsZero() {
		keys = append(keys, m.idKey(mailbox.ID))
		if current, err := m.backend.FindByID(ctx, mailbox.ID); err == nil && current.Path != mailbox.Path {
			keys = append(keys, m.pathKey(current.Path))
		}
	}

	if err := m.backend.Delete(ctx, mailbox); err != nil {
		return err
	}
	m.invalidate(ctx, keys...)
	return nil
}

// FindByPath serves from cache when possible, falling back to the backend
// and populating on a miss. Misses of the negative kind (NotFound) are not
// cached; a create must become visible immediately.
func (m *Mapper) FindByPath(ctx context.Context, path store.MailboxPath) (store.Mailbox, error) {
	if mailbox, ok := m.cacheGet(ctx, m.pathKey(path)); ok {
		return mailbox, nil
	}

	mailbox, err := m.backend.FindByPath(ctx, path)
	if err != nil {
		return store.Mailbox{}, err
	}
	m.cachePut(ctx, mailbox)
	return mailbox, nil
}

// FindByID serves from cache when possible, falling back to the backend.
func (m *Mapper) FindByID(ctx context.Context, id store.MailboxID) (store.Mailbox, error) {
	if id.IsZero() {
		return store.Mailbox{}, store.ErrInvalidID
	}
	if mailbox, ok := m.cacheGet(ctx, m.idKey(id)); ok {
		return mailbox, nil
	}

	mailbox, err := m.backend.FindByID(ctx, id)
	if err != nil {
		return store.Mailbox{}, err
	}
	m.cachePut(ctx, mailbox)
	return mailbox, nil
}

// List passes through to the backend.
func (m *Mapper) List(ctx context.Context) ([]store.Mailbox, error) {
	return m.backend.List(ctx)
}

// HasChildren passes through to the backend.
func (m *Mapper) HasChildren(ctx context.Context, mailbox store.Mailbox, delimiter rune) (bool, error) {
	return m.backend.HasChildren(ctx, mailbox, delimiter)
}

// FindWithPathLike passes through to the backend.
func (m *Mapper) FindWithPathLike(ctx context.Context, query store.Query) ([]store.Mailbox, error) {
	return m.backend.FindWithPathLike(ctx, query)
}
