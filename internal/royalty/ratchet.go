package royalty

// Direction says how a mutation moves the trust traders placed in a
// configuration.
type Direction int

const (
	// Widen relaxes the configuration and is always permitted.
	Widen Direction = iota
	// Narrow tightens the configuration and is refused once locked.
	Narrow
	// Seal is the lock itself.
	Seal
)

func (d Direction) String() string {
	switch d {
	case Widen:
		return "widen"
	case Narrow:
		return "narrow"
	case Seal:
		return "seal"
	}

	return "unknown"
}

type Mutation string

const (
	ChangeRoyaltyPercentage       Mutation = "change_royalty_percentage_fee"
	LowerMaximumRoyaltyPercentage Mutation = "lower_maximum_royalty_percentage"
	RestrictCurrencies            Mutation = "restrict_currencies_true"
	UnrestrictCurrencies          Mutation = "restrict_currencies_false"
	AddPermittedCurrency          Mutation = "add_permitted_currency"
	RemovePermittedCurrency       Mutation = "remove_permitted_currency"
	EnableMinimumRoyalties        Mutation = "enable_minimum_royalties"
	DisableMinimumRoyalties       Mutation = "disable_minimum_royalties"
	SetMinimumRoyaltyAmount       Mutation = "set_minimum_royalty_amount"
	RemoveMinimumRoyaltyAmount    Mutation = "remove_minimum_royalty_amount"
	LimitDapps                    Mutation = "limit_dapps_true"
	UnlimitDapps                  Mutation = "limit_dapps_false"
	AddPermissionedDapp           Mutation = "add_permissioned_dapp"
	RemovePermissionedDapp        Mutation = "remove_permissioned_dapp"
	AddPermissionedBuyer          Mutation = "add_permissioned_buyer"
	RemovePermissionedBuyer       Mutation = "remove_permissioned_buyer"
	DenyAllBuyers                 Mutation = "deny_all_buyers"
	AllowAllBuyers                Mutation = "allow_all_buyers"
	LockConfiguration             Mutation = "lock_royalty_configuration"
)

// Ratchet classifies every configuration mutation.
var Ratchet = map[Mutation]Direction{
	ChangeRoyaltyPercentage:       Narrow,
	LowerMaximumRoyaltyPercentage: Widen,
	RestrictCurrencies:            Narrow,
	UnrestrictCurrencies:          Widen,
	AddPermittedCurrency:          Widen,
	RemovePermittedCurrency:       Narrow,
	EnableMinimumRoyalties:        Narrow,
	DisableMinimumRoyalties:       Widen,
	SetMinimumRoyaltyAmount:       Narrow,
	RemoveMinimumRoyaltyAmount:    Widen,
	LimitDapps:                    Narrow,
	UnlimitDapps:                  Widen,
	AddPermissionedDapp:           Widen,
	RemovePermissionedDapp:        Narrow,
	AddPermissionedBuyer:          Widen,
	RemovePermissionedBuyer:       Narrow,
	DenyAllBuyers:                 Narrow,
	AllowAllBuyers:                Widen,
	LockConfiguration:             Seal,
}

// Permitted reports whether m may run against a configuration in the given
// lock state. Unknown mutations are treated as narrowing.
func Permitted(m Mutation, locked bool) bool {
	direction, ok := Ratchet[m]
	if !ok {
		direction = Narrow
	}

	return direction != Narrow || !locked
}
