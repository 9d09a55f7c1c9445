package ledger

// DepositRule is evaluated on every deposit of a resource into a vault.
type DepositRule interface {
	Allows(tx *Tx, b *Bucket) bool
}

type AllowAll struct{}

func (AllowAll) Allows(*Tx, *Bucket) bool {
	return true
}

type DenyAll struct{}

func (DenyAll) Allows(*Tx, *Bucket) bool {
	return false
}

// RoyaltyGate restricts where a royalty collection can travel. A deposit is
// admitted when the auth zone holds the bypass badge, when the policy
// component itself is the actor, or when a ticket issued by the policy
// covers the deposit.
type RoyaltyGate struct {
	Bypass Address `json:"bypass"`
	Policy Address `json:"policy"`
}

func (g RoyaltyGate) Allows(tx *Tx, b *Bucket) bool {
	if tx.HasProofOf(g.Bypass) {
		return true
	}
	if tx.Actor() == g.Policy {
		return true
	}

	return tx.redeemTicket(g.Policy, b)
}

// TransferTicket lets one target component receive specific non-fungibles
// once, for the duration of a single call.
type TransferTicket struct {
	issuer   Address
	target   Address
	resource Address
	ids      map[LocalID]bool
	redeemed bool
}

// IssueTicket creates a ticket issued by the current actor covering the
// content of b, redeemable by target.
func (tx *Tx) IssueTicket(target Address, b *Bucket) *TransferTicket {
	t := &TransferTicket{
		issuer:   tx.Actor(),
		target:   target,
		resource: b.Resource(),
		ids:      make(map[LocalID]bool, len(b.ids)),
	}
	for id := range b.ids {
		t.ids[id] = true
	}

	return t
}

func (t *TransferTicket) Redeemed() bool {
	return t.redeemed
}

// WithTicket makes t redeemable while fn runs. The ticket is withdrawn when
// fn returns, redeemed or not.
func (tx *Tx) WithTicket(t *TransferTicket, fn func() error) error {
	depth := len(tx.tickets)
	tx.tickets = append(tx.tickets, t)
	defer func() {
		tx.tickets = tx.tickets[:depth]
	}()

	return fn()
}

func (tx *Tx) redeemTicket(issuer Address, b *Bucket) bool {
	for _, t := range tx.tickets {
		if t.redeemed || t.issuer != issuer || t.target != tx.Actor() || t.resource != b.Resource() {
			continue
		}
		if !t.covers(b) {
			continue
		}
		t.redeemed = true

		return true
	}

	return false
}

func (t *TransferTicket) covers(b *Bucket) bool {
	if len(b.ids) == 0 {
		return false
	}
	for id := range b.ids {
		if !t.ids[id] {
			return false
		}
	}

	return true
}
