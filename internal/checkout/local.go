package checkout

import (
	"context"
	"errors"

	"ecostore/internal/models"
	"ecostore/internal/storage"
)

// Keys of the records the storefront keeps across restarts.
const (
	KeyPendingTransaction = "pendingTransaction"
	KeyCart               = "cart"
	KeySession            = "session"
)

// Session is the stored login, sent with every backend request when present.
type Session struct {
	Token  string `json:"token,omitempty"`
	Cookie string `json:"cookie,omitempty"`
}

// LocalState reads and writes the storefront's persisted records.
type LocalState struct {
	store storage.Store
}

func NewLocalState(store storage.Store) *LocalState {
	return &LocalState{store: store}
}

// PendingTransaction returns the stored pending transaction, or nil.
func (l *LocalState) PendingTransaction(ctx context.Context) (*models.PendingTransaction, error) {
	var p models.PendingTransaction
	if err := storage.GetJSON(ctx, l.store, KeyPendingTransaction, &p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (l *LocalState) SavePendingTransaction(ctx context.Context, p models.PendingTransaction) error {
	return storage.SetJSON(ctx, l.store, KeyPendingTransaction, p)
}

func (l *LocalState) ClearPendingTransaction(ctx context.Context) error {
	return l.store.Delete(ctx, KeyPendingTransaction)
}

// Cart returns the stored cart lines; an absent cart is empty.
func (l *LocalState) Cart(ctx context.Context) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := storage.GetJSON(ctx, l.store, KeyCart, &items); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return items, nil
}

func (l *LocalState) SaveCart(ctx context.Context, items []models.OrderItem) error {
	return storage.SetJSON(ctx, l.store, KeyCart, items)
}

func (l *LocalState) ClearCart(ctx context.Context) error {
	return l.store.Delete(ctx, KeyCart)
}

// Session returns the stored session, or nil when logged out.
func (l *LocalState) Session(ctx context.Context) (*Session, error) {
	var s Session
	if err := storage.GetJSON(ctx, l.store, KeySession, &s); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (l *LocalState) SaveSession(ctx context.Context, s Session) error {
	return storage.SetJSON(ctx, l.store, KeySession, s)
}

func (l *LocalState) ClearSession(ctx context.Context) error {
	return l.store.Delete(ctx, KeySession)
}
