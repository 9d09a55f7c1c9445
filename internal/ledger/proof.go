package ledger

import (
	"github.com/shopspring/decimal"
)

// Proof shows that its presenter held some amount or some ids of a resource
// at the moment it was created. Proofs can only be created from vaults and
// buckets and are only valid in the transaction that created them.
type Proof struct {
	tx       *Tx
	resource *ResourceManager
	amount   decimal.Decimal
	ids      map[LocalID]bool
}

func newProof(tx *Tx, rm *ResourceManager, amount decimal.Decimal, ids map[LocalID]bool) *Proof {
	p := &Proof{tx: tx, resource: rm, amount: amount, ids: make(map[LocalID]bool, len(ids))}
	for id := range ids {
		p.ids[id] = true
	}

	return p
}

func (p *Proof) Resource() Address {
	return p.resource.address
}

// ResourceManager gives access to the metadata of the proven resource.
func (p *Proof) ResourceManager() *ResourceManager {
	return p.resource
}

func (p *Proof) Amount() decimal.Decimal {
	return p.amount
}

func (p *Proof) NonFungibleIDs() []LocalID {
	return sortedIDs(p.ids)
}

// Valid checks that the proof exists and belongs to tx.
func (p *Proof) Valid(tx *Tx) error {
	if p == nil || p.tx == nil || p.resource == nil {
		return Denied("missing proof")
	}
	if p.tx != tx {
		return Denied("proof of %s was created in another transaction", p.resource.address)
	}
	if !p.amount.IsPositive() {
		return Denied("proof of %s is empty", p.resource.address)
	}

	return nil
}

// Check validates the proof against the issuing resource.
func (p *Proof) Check(tx *Tx, resource Address) error {
	if err := p.Valid(tx); err != nil {
		return err
	}
	if p.resource.address != resource {
		return Denied("expected proof of %s, got %s", resource, p.resource.address)
	}

	return nil
}

// CheckNonFungible validates the proof against one specific non-fungible.
func (p *Proof) CheckNonFungible(tx *Tx, id GlobalID) error {
	if err := p.Check(tx, id.Resource); err != nil {
		return err
	}
	if !p.ids[id.Local] {
		return Denied("proof does not contain %s", id)
	}

	return nil
}
