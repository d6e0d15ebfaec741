package service

import (
	"context"

	"basegraph.app/scribe/core/db"
	"basegraph.app/scribe/internal/store"
)

// StoreProvider exposes the stores a room operation may touch.
type StoreProvider interface {
	Rooms() store.RoomStore
	Segments() store.SegmentStore
	Topics() store.TopicStore
	Summaries() store.SummaryStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q db.Querier) error {
		return fn(store.NewStores(q))
	})
}
