package ledger

import (
	"github.com/shopspring/decimal"
)

// Account is an end-user account. Anyone may deposit into it, subject to
// the deposit rule of the resource; only its owner may withdraw or prove.
type Account struct {
	address Address
	owner   Identity
	vaults  *KeyValueStore[Address, *Vault]
}

func NewAccount(tx *Tx, owner Identity) (*Account, error) {
	a := &Account{
		address: tx.AllocateAddress(KindAccount),
		owner:   owner,
		vaults:  NewKeyValueStore[Address, *Vault](),
	}
	if err := tx.Register(a); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Account) Address() Address {
	return a.address
}

func (a *Account) Owner() Identity {
	return a.owner
}

func (a *Account) Deposit(tx *Tx, b *Bucket) error {
	if b.IsEmpty() {
		return nil
	}

	v, ok := a.vaults.Get(b.Resource())
	if !ok {
		v = NewVault(b.resource)
		a.vaults.Insert(tx, b.Resource(), v)
	}

	return v.Put(tx, b)
}

func (a *Account) DepositAll(tx *Tx, buckets ...*Bucket) error {
	for _, b := range buckets {
		if b == nil {
			continue
		}
		if err := a.Deposit(tx, b); err != nil {
			return err
		}
	}

	return nil
}

func (a *Account) Withdraw(tx *Tx, resource Address, amount decimal.Decimal) (*Bucket, error) {
	v, err := a.ownerVault(tx, resource)
	if err != nil {
		return nil, err
	}

	return v.Take(tx, amount)
}

func (a *Account) WithdrawNonFungible(tx *Tx, id GlobalID) (*Bucket, error) {
	v, err := a.ownerVault(tx, id.Resource)
	if err != nil {
		return nil, err
	}

	return v.TakeNonFungible(tx, id.Local)
}

func (a *Account) CreateProofOfAmount(tx *Tx, resource Address, amount decimal.Decimal) (*Proof, error) {
	v, err := a.ownerVault(tx, resource)
	if err != nil {
		return nil, err
	}

	return v.CreateProofOfAmount(tx, amount)
}

func (a *Account) CreateProofOfNonFungibles(tx *Tx, id GlobalID) (*Proof, error) {
	v, err := a.ownerVault(tx, id.Resource)
	if err != nil {
		return nil, err
	}

	return v.CreateProofOfNonFungibles(tx, id.Local)
}

func (a *Account) Balance(resource Address) decimal.Decimal {
	if v, ok := a.vaults.Get(resource); ok {
		return v.Amount()
	}

	return decimal.Zero
}

func (a *Account) Holds(id GlobalID) bool {
	if v, ok := a.vaults.Get(id.Resource); ok {
		return v.Contains(id.Local)
	}

	return false
}

func (a *Account) NonFungibleIDs(resource Address) []LocalID {
	if v, ok := a.vaults.Get(resource); ok {
		return v.NonFungibleIDs()
	}

	return nil
}

func (a *Account) ownerVault(tx *Tx, resource Address) (*Vault, error) {
	if !tx.SignedBy(a.owner) {
		return nil, Denied("account %s requires the signature of %s", a.address, a.owner)
	}

	v, ok := a.vaults.Get(resource)
	if !ok {
		return nil, NotFound("account %s holds no %s", a.address, resource)
	}

	return v, nil
}
