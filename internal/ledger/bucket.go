package ledger

import (
	"github.com/shopspring/decimal"
	"sort"
)

// Bucket holds resources in flight during one transaction. A transaction
// cannot commit while any of its buckets still holds something.
type Bucket struct {
	tx       *Tx
	resource *ResourceManager
	amount   decimal.Decimal
	ids      map[LocalID]bool
}

func (tx *Tx) newBucket(rm *ResourceManager) *Bucket {
	b := &Bucket{tx: tx, resource: rm, amount: decimal.Zero, ids: make(map[LocalID]bool)}
	tx.buckets = append(tx.buckets, b)

	return b
}

func (b *Bucket) Resource() Address {
	return b.resource.address
}

func (b *Bucket) ResourceManager() *ResourceManager {
	return b.resource
}

func (b *Bucket) Amount() decimal.Decimal {
	return b.amount
}

func (b *Bucket) IsEmpty() bool {
	return b.amount.IsZero()
}

func (b *Bucket) IsNonFungible() bool {
	return b.resource.IsNonFungible()
}

func (b *Bucket) NonFungibleIDs() []LocalID {
	return sortedIDs(b.ids)
}

// NonFungibleID returns the id of a bucket holding exactly one non-fungible.
func (b *Bucket) NonFungibleID() (LocalID, error) {
	if !b.IsNonFungible() || len(b.ids) != 1 {
		return "", Invalid("bucket of %s does not hold exactly one non-fungible", b.resource.address)
	}
	for id := range b.ids {
		return id, nil
	}

	return "", nil
}

// Take removes exactly amount, which must respect the resource divisibility.
func (b *Bucket) Take(amount decimal.Decimal) (*Bucket, error) {
	if b.IsNonFungible() {
		return nil, Invalid("take by amount on non-fungible bucket of %s", b.resource.address)
	}
	if amount.IsNegative() || !b.resource.fits(amount) {
		return nil, Invalid("invalid amount %s for resource %s", amount, b.resource.address)
	}
	if amount.GreaterThan(b.amount) {
		return nil, Invalid("insufficient balance: requested %s, bucket holds %s", amount, b.amount)
	}

	taken := b.tx.newBucket(b.resource)
	taken.amount = amount
	b.amount = b.amount.Sub(amount)

	return taken, nil
}

// TakeAdvanced rounds amount toward zero at the resource divisibility
// before taking it.
func (b *Bucket) TakeAdvanced(amount decimal.Decimal) (*Bucket, error) {
	return b.Take(amount.Truncate(b.resource.divisibility))
}

func (b *Bucket) TakeNonFungible(id LocalID) (*Bucket, error) {
	if !b.ids[id] {
		return nil, NotFound("bucket does not hold %s", NewGlobalID(b.resource.address, id))
	}

	taken := b.tx.newBucket(b.resource)
	taken.ids[id] = true
	taken.sync()

	delete(b.ids, id)
	b.sync()

	return taken, nil
}

func (b *Bucket) TakeAll() *Bucket {
	taken := b.tx.newBucket(b.resource)
	b.drainInto(taken)

	return taken
}

// Put moves the whole content of other into b.
func (b *Bucket) Put(other *Bucket) error {
	if other.tx != b.tx {
		return Invalid("bucket belongs to another transaction")
	}
	if other.resource != b.resource {
		return Invalid("cannot put %s into a bucket of %s", other.resource.address, b.resource.address)
	}
	other.drainInto(b)

	return nil
}

func (b *Bucket) Burn() error {
	if !b.resource.burnable {
		return Denied("resource %s is not burnable", b.resource.address)
	}
	b.tx.mutate()
	b.resource.burn(b.tx, b)

	b.amount = decimal.Zero
	b.ids = make(map[LocalID]bool)

	return nil
}

// CreateProof proves possession of the bucket content within its transaction.
func (b *Bucket) CreateProof() (*Proof, error) {
	if b.IsEmpty() {
		return nil, Invalid("cannot create a proof from an empty bucket of %s", b.resource.address)
	}

	return newProof(b.tx, b.resource, b.amount, b.ids), nil
}

func (b *Bucket) drainInto(target *Bucket) {
	target.amount = target.amount.Add(b.amount)
	for id := range b.ids {
		target.ids[id] = true
	}
	b.amount = decimal.Zero
	b.ids = make(map[LocalID]bool)
}

func (b *Bucket) sync() {
	b.amount = decimal.NewFromInt(int64(len(b.ids)))
}

func sortedIDs(ids map[LocalID]bool) []LocalID {
	out := make([]LocalID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
