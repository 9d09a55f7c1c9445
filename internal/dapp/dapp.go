// Package dapp holds components that receive assets from trader accounts
// and marketplaces: a custody dapp and a preview minter.
package dapp

import (
	"github.com/ZilDuck/opentrade/internal/ledger"
	"go.uber.org/zap"
)

const DepositMethod = "deposit"

// Dapp keeps every asset handed to it until its admin takes it back.
type Dapp struct {
	address ledger.Address
	name    string
	admin   *ledger.ResourceManager
	vaults  *ledger.KeyValueStore[ledger.Address, *ledger.Vault]
}

func New(tx *ledger.Tx, name string) (*Dapp, *ledger.Bucket, error) {
	d := &Dapp{
		address: tx.AllocateAddress(ledger.KindComponent),
		name:    name,
		vaults:  ledger.NewKeyValueStore[ledger.Address, *ledger.Vault](),
	}

	var admin *ledger.Bucket
	err := tx.Call(d.address, func() error {
		var err error
		if d.admin, err = tx.NewResource(ledger.ResourceSpec{
			Type:     ledger.NonFungible,
			Metadata: map[string]interface{}{"name": name + " Admin"},
		}); err != nil {
			return err
		}
		admin, err = d.admin.MintNonFungible(tx, ledger.IntegerID(1))

		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Register(d); err != nil {
		return nil, nil, err
	}

	return d, admin, nil
}

func (d *Dapp) Address() ledger.Address {
	return d.address
}

func (d *Dapp) AdminBadge() ledger.GlobalID {
	return ledger.NewGlobalID(d.admin.Address(), ledger.IntegerID(1))
}

func (d *Dapp) Holds(id ledger.GlobalID) bool {
	v, ok := d.vaults.Get(id.Resource)
	return ok && v.Contains(id.Local)
}

// Invoke accepts assets through the deposit method.
func (d *Dapp) Invoke(tx *ledger.Tx, method string, asset *ledger.Bucket) ([]*ledger.Bucket, error) {
	if method != DepositMethod {
		return nil, ledger.Invalid("dapp %s has no method %q", d.name, method)
	}

	err := tx.Call(d.address, func() error {
		if v, ok := d.vaults.Get(asset.Resource()); ok {
			return v.Put(tx, asset)
		}

		v := ledger.NewVault(asset.ResourceManager())
		if err := v.Put(tx, asset); err != nil {
			return err
		}
		d.vaults.Insert(tx, asset.Resource(), v)

		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().With(zap.String("dapp", d.name), zap.String("resource", asset.Resource().String())).Debug("Dapp: Asset received")

	return nil, nil
}

// Withdraw hands everything held of resource back to the admin.
func (d *Dapp) Withdraw(tx *ledger.Tx, admin *ledger.Proof, resource ledger.Address) (*ledger.Bucket, error) {
	var out *ledger.Bucket

	err := tx.Call(d.address, func() error {
		if err := admin.CheckNonFungible(tx, d.AdminBadge()); err != nil {
			return err
		}

		v, ok := d.vaults.Get(resource)
		if !ok {
			return ledger.NotFound("dapp %s holds no %s", d.name, resource)
		}
		out = v.TakeAll(tx)

		return nil
	})

	return out, err
}
