package mongo

import (
	"context"

	"github.com/rbaliyan/mailboxtree/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Save upserts the document keyed by _id. When the replacement breaks the
// unique path index the server rejects it atomically, which is what turns
// a concurrent save race into exactly one ErrMailboxExists.
func (m *Mapper) Save(ctx context.Context, mailbox store.Mailbox) (store.Mailbox, error) {
	if err := m.checkConnected(); err != nil {
		return store.Mailbox{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	if mailbox.ID.IsZero() {
		mailbox.ID = m.opts.generateID()
	}

	filter := bson.M{"_id": string(mailbox.ID)}
	_, err := m.collection.ReplaceOne(ctx, filter, newDoc(mailbox),
		mongoopts.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.Mailbox{}, store.ErrMailboxExists
		}
		return store.Mailbox{}, store.NewStorageError("save", err)
	}

	return mailbox, nil
}

// Delete removes the document by _id, or by path when the id is unassigned.
func (m *Mapper) Delete(ctx context.Context, mailbox store.Mailbox) error {
	if err := m.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout)
	defer cancel()

	var filter bson.M
	if !mailbox.ID.IsZero() {
		filter = bson.M{"_id": string(mailbox.ID)}
	} else {
		filter = bson.M{
			"namespace": mailbox.Path.Namespace,
			"user":      mailbox.Path.User,
			"name":      mailbox.Path.Name,
		}
	}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return store.NewStorageError("delete", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
