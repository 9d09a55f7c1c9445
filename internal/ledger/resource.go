package ledger

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ResourceType int

const (
	Fungible ResourceType = iota
	NonFungible
)

const MaxDivisibility int32 = 18

type ResourceSpec struct {
	Type ResourceType

	// Divisibility is the number of decimal places a fungible amount may
	// carry. Ignored for non-fungibles.
	Divisibility int32
	Metadata     map[string]interface{}
	DepositRule  DepositRule
	Burnable     bool
}

// ResourceManager defines one resource type. The component that created it
// is its owner and the only one allowed to mint or to update its metadata
// and deposit rule.
type ResourceManager struct {
	address      Address
	kind         ResourceType
	divisibility int32
	owner        Address
	burnable     bool

	metadata    *KeyValueStore[string, interface{}]
	depositRule *Cell[DepositRule]
	supply      *Cell[decimal.Decimal]
	ids         *KeyValueStore[LocalID, struct{}]
}

// NewResource defines a resource owned by the current actor.
func (tx *Tx) NewResource(spec ResourceSpec) (*ResourceManager, error) {
	tx.mutate()

	if spec.Type == Fungible && (spec.Divisibility < 0 || spec.Divisibility > MaxDivisibility) {
		return nil, Invalid("divisibility %d out of range", spec.Divisibility)
	}

	rm := &ResourceManager{
		address:      tx.AllocateAddress(KindResource),
		kind:         spec.Type,
		divisibility: spec.Divisibility,
		owner:        tx.Actor(),
		burnable:     spec.Burnable,
		metadata:     NewKeyValueStore[string, interface{}](),
		depositRule:  NewCell[DepositRule](spec.DepositRule),
		supply:       NewCell(decimal.Zero),
		ids:          NewKeyValueStore[LocalID, struct{}](),
	}
	if rm.kind == NonFungible {
		rm.divisibility = 0
	}
	for key, value := range spec.Metadata {
		rm.metadata.entries[key] = value
	}

	tx.ledger.resources.Insert(tx, rm.address, rm)

	zap.L().With(zap.String("resource", rm.address.String()), zap.String("owner", rm.owner.String())).
		Debug("Ledger: Resource created")

	return rm, nil
}

// NewResourceWithSupply defines a fungible resource and mints its initial supply.
func (tx *Tx) NewResourceWithSupply(spec ResourceSpec, supply decimal.Decimal) (*ResourceManager, *Bucket, error) {
	if spec.Type != Fungible {
		return nil, nil, Invalid("initial supply requires a fungible resource")
	}

	rm, err := tx.NewResource(spec)
	if err != nil {
		return nil, nil, err
	}

	bucket, err := rm.mint(tx, supply)
	if err != nil {
		return nil, nil, err
	}

	return rm, bucket, nil
}

func (rm *ResourceManager) Address() Address {
	return rm.address
}

func (rm *ResourceManager) Type() ResourceType {
	return rm.kind
}

func (rm *ResourceManager) IsNonFungible() bool {
	return rm.kind == NonFungible
}

func (rm *ResourceManager) Divisibility() int32 {
	return rm.divisibility
}

func (rm *ResourceManager) Owner() Address {
	return rm.owner
}

func (rm *ResourceManager) Burnable() bool {
	return rm.burnable
}

func (rm *ResourceManager) TotalSupply() decimal.Decimal {
	return rm.supply.Get()
}

func (rm *ResourceManager) DepositRule() DepositRule {
	return rm.depositRule.Get()
}

func (rm *ResourceManager) SetDepositRule(tx *Tx, rule DepositRule) error {
	if err := rm.checkOwner(tx, "set deposit rule"); err != nil {
		return err
	}
	rm.depositRule.Set(tx, rule)

	return nil
}

func (rm *ResourceManager) Metadata(key string) (interface{}, bool) {
	return rm.metadata.Get(key)
}

func (rm *ResourceManager) MetadataString(key string) (string, bool) {
	value, ok := rm.metadata.Get(key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)

	return s, ok
}

func (rm *ResourceManager) MetadataDecimal(key string) (decimal.Decimal, bool) {
	value, ok := rm.metadata.Get(key)
	if !ok {
		return decimal.Zero, false
	}
	d, ok := value.(decimal.Decimal)

	return d, ok
}

func (rm *ResourceManager) MetadataAddress(key string) (Address, bool) {
	value, ok := rm.metadata.Get(key)
	if !ok {
		return "", false
	}
	a, ok := value.(Address)

	return a, ok
}

func (rm *ResourceManager) SetMetadata(tx *Tx, key string, value interface{}) error {
	if err := rm.checkOwner(tx, "set metadata"); err != nil {
		return err
	}
	rm.metadata.Insert(tx, key, value)

	return nil
}

func (rm *ResourceManager) Mint(tx *Tx, amount decimal.Decimal) (*Bucket, error) {
	if err := rm.checkOwner(tx, "mint"); err != nil {
		return nil, err
	}

	return rm.mint(tx, amount)
}

func (rm *ResourceManager) mint(tx *Tx, amount decimal.Decimal) (*Bucket, error) {
	if rm.kind != Fungible {
		return nil, Invalid("resource %s is non-fungible, mint by id", rm.address)
	}
	if !amount.IsPositive() || !rm.fits(amount) {
		return nil, Invalid("invalid mint amount %s for resource %s", amount, rm.address)
	}

	rm.supply.Set(tx, rm.supply.Get().Add(amount))

	bucket := tx.newBucket(rm)
	bucket.amount = amount

	return bucket, nil
}

func (rm *ResourceManager) MintNonFungible(tx *Tx, ids ...LocalID) (*Bucket, error) {
	if err := rm.checkOwner(tx, "mint"); err != nil {
		return nil, err
	}
	if rm.kind != NonFungible {
		return nil, Invalid("resource %s is fungible, mint by amount", rm.address)
	}
	if len(ids) == 0 {
		return nil, Invalid("no ids to mint for resource %s", rm.address)
	}

	bucket := tx.newBucket(rm)
	for _, id := range ids {
		if rm.ids.Has(id) || bucket.ids[id] {
			return nil, Invalid("non-fungible %s already exists", NewGlobalID(rm.address, id))
		}
		rm.ids.Insert(tx, id, struct{}{})
		bucket.ids[id] = true
	}
	bucket.sync()
	rm.supply.Set(tx, rm.supply.Get().Add(decimal.NewFromInt(int64(len(ids)))))

	return bucket, nil
}

func (rm *ResourceManager) MintRUID(tx *Tx) (*Bucket, error) {
	return rm.MintNonFungible(tx, RUID())
}

func (rm *ResourceManager) NonFungibleExists(id LocalID) bool {
	return rm.ids.Has(id)
}

func (rm *ResourceManager) burn(tx *Tx, b *Bucket) {
	rm.supply.Set(tx, rm.supply.Get().Sub(b.amount))
	for id := range b.ids {
		rm.ids.Remove(tx, id)
	}
}

func (rm *ResourceManager) checkOwner(tx *Tx, action string) error {
	if rm.owner.IsZero() || tx.Actor() != rm.owner {
		return Denied("%s on resource %s requires its owner component", action, rm.address)
	}

	return nil
}

// fits reports whether amount carries no more decimal places than allowed.
func (rm *ResourceManager) fits(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(rm.divisibility))
}
