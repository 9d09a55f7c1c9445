package ledger

import (
	"github.com/shopspring/decimal"
)

// Vault is persistent storage for one resource. Deposits are checked
// against the resource deposit rule; withdrawals are the owning
// component's business.
type Vault struct {
	resource *ResourceManager
	amount   decimal.Decimal
	ids      map[LocalID]bool
}

func NewVault(rm *ResourceManager) *Vault {
	return &Vault{resource: rm, amount: decimal.Zero, ids: make(map[LocalID]bool)}
}

func VaultWithBucket(tx *Tx, b *Bucket) (*Vault, error) {
	v := NewVault(b.resource)
	if err := v.Put(tx, b); err != nil {
		return nil, err
	}

	return v, nil
}

func (v *Vault) Resource() Address {
	return v.resource.address
}

func (v *Vault) ResourceManager() *ResourceManager {
	return v.resource
}

func (v *Vault) Amount() decimal.Decimal {
	return v.amount
}

func (v *Vault) IsEmpty() bool {
	return v.amount.IsZero()
}

func (v *Vault) Contains(id LocalID) bool {
	return v.ids[id]
}

func (v *Vault) NonFungibleIDs() []LocalID {
	return sortedIDs(v.ids)
}

func (v *Vault) Put(tx *Tx, b *Bucket) error {
	tx.mutate()

	if b.tx != tx {
		return Invalid("bucket belongs to another transaction")
	}
	if b.resource != v.resource {
		return Invalid("cannot put %s into a vault of %s", b.resource.address, v.resource.address)
	}
	if b.IsEmpty() {
		return nil
	}
	if rule := v.resource.DepositRule(); rule != nil && !rule.Allows(tx, b) {
		return Denied("deposit of %s rejected by its deposit rule", v.resource.address)
	}

	v.snapshot(tx)
	v.amount = v.amount.Add(b.amount)
	for id := range b.ids {
		v.ids[id] = true
	}
	b.amount = decimal.Zero
	b.ids = make(map[LocalID]bool)

	return nil
}

func (v *Vault) Take(tx *Tx, amount decimal.Decimal) (*Bucket, error) {
	tx.mutate()

	if v.resource.IsNonFungible() {
		return nil, Invalid("take by amount on non-fungible vault of %s", v.resource.address)
	}
	if amount.IsNegative() || !v.resource.fits(amount) {
		return nil, Invalid("invalid amount %s for resource %s", amount, v.resource.address)
	}
	if amount.GreaterThan(v.amount) {
		return nil, Invalid("insufficient balance: requested %s, vault holds %s", amount, v.amount)
	}

	v.snapshot(tx)
	v.amount = v.amount.Sub(amount)

	b := tx.newBucket(v.resource)
	b.amount = amount

	return b, nil
}

func (v *Vault) TakeNonFungible(tx *Tx, id LocalID) (*Bucket, error) {
	tx.mutate()

	if !v.ids[id] {
		return nil, NotFound("vault does not hold %s", NewGlobalID(v.resource.address, id))
	}

	v.snapshot(tx)
	delete(v.ids, id)
	v.amount = decimal.NewFromInt(int64(len(v.ids)))

	b := tx.newBucket(v.resource)
	b.ids[id] = true
	b.sync()

	return b, nil
}

func (v *Vault) TakeAll(tx *Tx) *Bucket {
	tx.mutate()

	v.snapshot(tx)
	b := tx.newBucket(v.resource)
	b.amount = v.amount
	b.ids = v.ids

	v.amount = decimal.Zero
	v.ids = make(map[LocalID]bool)

	return b
}

func (v *Vault) CreateProofOfAmount(tx *Tx, amount decimal.Decimal) (*Proof, error) {
	if !amount.IsPositive() || amount.GreaterThan(v.amount) {
		return nil, Invalid("cannot prove %s of %s", amount, v.resource.address)
	}

	return newProof(tx, v.resource, amount, nil), nil
}

func (v *Vault) CreateProofOfNonFungibles(tx *Tx, ids ...LocalID) (*Proof, error) {
	if len(ids) == 0 {
		return nil, Invalid("no ids to prove for %s", v.resource.address)
	}

	set := make(map[LocalID]bool, len(ids))
	for _, id := range ids {
		if !v.ids[id] {
			return nil, NotFound("vault does not hold %s", NewGlobalID(v.resource.address, id))
		}
		set[id] = true
	}

	return newProof(tx, v.resource, decimal.NewFromInt(int64(len(set))), set), nil
}

// CreateProof proves the whole vault content.
func (v *Vault) CreateProof(tx *Tx) (*Proof, error) {
	if v.IsEmpty() {
		return nil, Invalid("cannot create a proof from an empty vault of %s", v.resource.address)
	}

	return newProof(tx, v.resource, v.amount, v.ids), nil
}

func (v *Vault) snapshot(tx *Tx) {
	amount := v.amount
	ids := make(map[LocalID]bool, len(v.ids))
	for id := range v.ids {
		ids[id] = true
	}

	tx.record(func() {
		v.amount = amount
		v.ids = ids
	})
}
