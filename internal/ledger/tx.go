package ledger

import (
	"errors"
	"time"
)

type TxID string

// Identity is the signer of a transaction, the owner of an account.
type Identity string

// Event is published to commit hooks when its transaction commits.
type Event struct {
	Name    string      `json:"name"`
	Emitter Address     `json:"emitter"`
	Payload interface{} `json:"payload"`
}

var errReadOnly = errors.New("ledger: mutation in a read-only transaction")

// Tx is one atomic unit of work. It is not safe for concurrent use and must
// not be retained after its Execute or View call returns.
type Tx struct {
	id       TxID
	ledger   *Ledger
	at       time.Time
	signers  map[Identity]bool
	readOnly bool

	journal  []func()
	frames   []Address
	authZone []*Proof
	tickets  []*TransferTicket
	buckets  []*Bucket
	events   []Event
}

func (tx *Tx) ID() TxID {
	return tx.id
}

func (tx *Tx) Now() time.Time {
	return tx.at
}

func (tx *Tx) SignedBy(id Identity) bool {
	return tx.signers[id]
}

// Actor is the component whose method is currently executing, or the zero
// address at the top level of the transaction.
func (tx *Tx) Actor() Address {
	if len(tx.frames) == 0 {
		return ""
	}

	return tx.frames[len(tx.frames)-1]
}

// Call runs fn as a method of component.
func (tx *Tx) Call(component Address, fn func() error) error {
	tx.frames = append(tx.frames, component)
	defer func() {
		tx.frames = tx.frames[:len(tx.frames)-1]
	}()

	return fn()
}

// Authorize places p in the auth zone while fn runs.
func (tx *Tx) Authorize(p *Proof, fn func() error) error {
	if err := p.Valid(tx); err != nil {
		return err
	}

	depth := len(tx.authZone)
	tx.authZone = append(tx.authZone, p)
	defer func() {
		tx.authZone = tx.authZone[:depth]
	}()

	return fn()
}

func (tx *Tx) HasProofOf(resource Address) bool {
	for _, p := range tx.authZone {
		if p.resource.address == resource && p.amount.IsPositive() {
			return true
		}
	}

	return false
}

// Emit buffers an event. It is only published if the transaction commits.
func (tx *Tx) Emit(name string, payload interface{}) {
	tx.mutate()
	tx.events = append(tx.events, Event{Name: name, Emitter: tx.Actor(), Payload: payload})
}

func (tx *Tx) AllocateAddress(kind Kind) Address {
	return tx.ledger.allocate(kind)
}

func (tx *Tx) Register(c Component) error {
	tx.mutate()

	if tx.ledger.components.Has(c.Address()) {
		return Invalid("component %s already registered", c.Address())
	}
	tx.ledger.components.Insert(tx, c.Address(), c)

	return nil
}

func (tx *Tx) Component(addr Address) (Component, bool) {
	return tx.ledger.components.Get(addr)
}

func (tx *Tx) Resource(addr Address) (*ResourceManager, bool) {
	return tx.ledger.resources.Get(addr)
}

func (tx *Tx) mutate() {
	if tx.readOnly {
		panic(errReadOnly)
	}
}

func (tx *Tx) record(undo func()) {
	tx.journal = append(tx.journal, undo)
}

func (tx *Tx) rollback() {
	for i := len(tx.journal) - 1; i >= 0; i-- {
		tx.journal[i]()
	}
	tx.journal = nil
	tx.events = nil
}

func (tx *Tx) checkBuckets() error {
	for _, b := range tx.buckets {
		if !b.IsEmpty() {
			return Invalid("dangling bucket of %s holding %s", b.resource.address, b.amount)
		}
	}

	return nil
}
