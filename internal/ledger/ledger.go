package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"github.com/nu7hatch/gouuid"
	"go.uber.org/zap"
	"sync"
	"time"
)

// Component is anything addressable that lives on the ledger.
type Component interface {
	Address() Address
}

// ExternalComponent is a component outside the protocol that accepts an asset
// through a named method.
type ExternalComponent interface {
	Component
	Invoke(tx *Tx, method string, asset *Bucket) ([]*Bucket, error)
}

type Receipt struct {
	TxID        TxID      `json:"txId"`
	Events      []Event   `json:"events"`
	CommittedAt time.Time `json:"committedAt"`
}

type CommitHook func(receipt Receipt)

type RejectHook func(txID TxID, err error)

// Ledger runs transactions one at a time. All state reachable from its
// components is only touched inside Execute or View.
type Ledger struct {
	mu    sync.Mutex
	id    string
	nonce uint64
	now   func() time.Time

	components *KeyValueStore[Address, Component]
	resources  *KeyValueStore[Address, *ResourceManager]

	hookMu   sync.RWMutex
	onCommit []CommitHook
	onReject []RejectHook
}

func New() *Ledger {
	u, _ := uuid.NewV4()

	return &Ledger{
		id:         u.String(),
		now:        time.Now,
		components: NewKeyValueStore[Address, Component](),
		resources:  NewKeyValueStore[Address, *ResourceManager](),
	}
}

func (l *Ledger) OnCommit(hook CommitHook) {
	l.hookMu.Lock()
	defer l.hookMu.Unlock()

	l.onCommit = append(l.onCommit, hook)
}

func (l *Ledger) OnReject(hook RejectHook) {
	l.hookMu.Lock()
	defer l.hookMu.Unlock()

	l.onReject = append(l.onReject, hook)
}

// Execute runs fn as one atomic transaction signed by signers. If fn returns
// an error, panics, or leaves resources in a bucket, every change it made is
// undone and its events are dropped.
func (l *Ledger) Execute(ctx context.Context, signers []Identity, fn func(tx *Tx) error) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	tx := l.begin(signers, false)

	err := run(tx, fn)
	if err == nil {
		err = tx.checkBuckets()
	}

	if err != nil {
		tx.rollback()
		l.mu.Unlock()

		zap.L().With(zap.String("txId", string(tx.id)), zap.Error(err)).Warn("Ledger: Transaction rejected")

		for _, hook := range l.rejectHooks() {
			hook(tx.id, err)
		}

		return Receipt{TxID: tx.id}, fmt.Errorf("transaction %s rejected: %w", tx.id, err)
	}

	receipt := Receipt{TxID: tx.id, Events: tx.events, CommittedAt: tx.at}
	l.mu.Unlock()

	zap.L().With(zap.String("txId", string(tx.id)), zap.Int("events", len(receipt.Events))).
		Debug("Ledger: Transaction committed")

	for _, hook := range l.commitHooks() {
		hook(receipt)
	}

	return receipt, nil
}

// View runs fn against the current state. Any mutation fails the call.
func (l *Ledger) View(fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := l.begin(nil, true)

	return run(tx, fn)
}

func (l *Ledger) begin(signers []Identity, readOnly bool) *Tx {
	l.nonce++

	u, _ := uuid.NewV4()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d/%s", l.id, l.nonce, u.String())))

	tx := &Tx{
		id:       TxID(hex.EncodeToString(sum[:])),
		ledger:   l,
		at:       l.now(),
		signers:  make(map[Identity]bool, len(signers)),
		readOnly: readOnly,
	}
	for _, s := range signers {
		tx.signers[s] = true
	}

	return tx
}

func (l *Ledger) allocate(kind Kind) Address {
	l.nonce++

	return newAddress(kind, fmt.Sprintf("%s/%d", l.id, l.nonce))
}

func (l *Ledger) commitHooks() []CommitHook {
	l.hookMu.RLock()
	defer l.hookMu.RUnlock()

	return append([]CommitHook(nil), l.onCommit...)
}

func (l *Ledger) rejectHooks() []RejectHook {
	l.hookMu.RLock()
	defer l.hookMu.RUnlock()

	return append([]RejectHook(nil), l.onReject...)
}

func run(tx *Tx, fn func(tx *Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("transaction panicked: %v", r)
		}
	}()

	return fn(tx)
}
