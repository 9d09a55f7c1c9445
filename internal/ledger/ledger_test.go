package ledger

import (
	"context"
	"errors"
	"github.com/shopspring/decimal"
	"testing"
)

func mustExecute(t *testing.T, l *Ledger, signers []Identity, fn func(tx *Tx) error) Receipt {
	t.Helper()

	receipt, err := l.Execute(context.Background(), signers, fn)
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	return receipt
}

func newFundedAccount(t *testing.T, l *Ledger, owner Identity, supply int64) (*Account, *ResourceManager) {
	t.Helper()

	var account *Account
	var currency *ResourceManager
	mustExecute(t, l, nil, func(tx *Tx) error {
		var err error
		if account, err = NewAccount(tx, owner); err != nil {
			return err
		}
		rm, bucket, err := tx.NewResourceWithSupply(ResourceSpec{Type: Fungible, Divisibility: 2}, decimal.NewFromInt(supply))
		if err != nil {
			return err
		}
		currency = rm

		return account.Deposit(tx, bucket)
	})

	return account, currency
}

func TestExecuteRollsBackOnError(t *testing.T) {
	l := New()
	alice, currency := newFundedAccount(t, l, "alice", 100)

	var created Address
	_, err := l.Execute(context.Background(), []Identity{"alice"}, func(tx *Tx) error {
		b, err := alice.Withdraw(tx, currency.Address(), decimal.NewFromInt(40))
		if err != nil {
			return err
		}
		bob, err := NewAccount(tx, "bob")
		if err != nil {
			return err
		}
		created = bob.Address()
		if err := bob.Deposit(tx, b); err != nil {
			return err
		}

		return Invalid("stop")
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if !alice.Balance(currency.Address()).Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected balance 100 after rollback, got %s", alice.Balance(currency.Address()))
	}

	_ = l.View(func(tx *Tx) error {
		if _, ok := tx.Component(created); ok {
			t.Errorf("component %s survived rollback", created)
		}
		return nil
	})
}

func TestExecuteRejectsDanglingBucket(t *testing.T) {
	l := New()
	alice, currency := newFundedAccount(t, l, "alice", 100)

	_, err := l.Execute(context.Background(), []Identity{"alice"}, func(tx *Tx) error {
		_, err := alice.Withdraw(tx, currency.Address(), decimal.NewFromInt(1))
		return err
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected dangling bucket to be rejected, got %v", err)
	}
	if !alice.Balance(currency.Address()).Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected balance to be restored, got %s", alice.Balance(currency.Address()))
	}
}

func TestExecuteRecoversPanics(t *testing.T) {
	l := New()

	_, err := l.Execute(context.Background(), nil, func(tx *Tx) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected panic to reject the transaction")
	}
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := l.Execute(ctx, nil, func(tx *Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancelled context to skip the transaction, got %v", err)
	}
}

func TestTransactionIDsAreUnique(t *testing.T) {
	l := New()
	seen := make(map[TxID]bool)

	for i := 0; i < 50; i++ {
		receipt := mustExecute(t, l, nil, func(tx *Tx) error { return nil })
		if seen[receipt.TxID] {
			t.Fatalf("duplicate transaction id %s", receipt.TxID)
		}
		seen[receipt.TxID] = true
	}
}

func TestEventsOnlyPublishedOnCommit(t *testing.T) {
	l := New()

	var published []Event
	l.OnCommit(func(r Receipt) { published = append(published, r.Events...) })

	var rejected int
	l.OnReject(func(TxID, error) { rejected++ })

	_, _ = l.Execute(context.Background(), nil, func(tx *Tx) error {
		tx.Emit("dropped", nil)
		return Invalid("abort")
	})
	mustExecute(t, l, nil, func(tx *Tx) error {
		tx.Emit("kept", 1)
		return nil
	})

	if len(published) != 1 || published[0].Name != "kept" {
		t.Fatalf("expected only the committed event, got %+v", published)
	}
	if rejected != 1 {
		t.Errorf("expected 1 rejection, got %d", rejected)
	}
}

func TestViewRejectsMutation(t *testing.T) {
	l := New()

	err := l.View(func(tx *Tx) error {
		_, err := NewAccount(tx, "alice")
		return err
	})
	if !errors.Is(err, errReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
}

func TestAccountRequiresOwnerSignature(t *testing.T) {
	l := New()
	alice, currency := newFundedAccount(t, l, "alice", 10)

	_, err := l.Execute(context.Background(), []Identity{"mallory"}, func(tx *Tx) error {
		b, err := alice.Withdraw(tx, currency.Address(), decimal.NewFromInt(1))
		if err != nil {
			return err
		}
		return alice.Deposit(tx, b)
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestTakeAdvancedRoundsTowardZero(t *testing.T) {
	l := New()
	alice, currency := newFundedAccount(t, l, "alice", 10)

	mustExecute(t, l, []Identity{"alice"}, func(tx *Tx) error {
		b, err := alice.Withdraw(tx, currency.Address(), decimal.NewFromInt(10))
		if err != nil {
			return err
		}

		taken, err := b.TakeAdvanced(decimal.RequireFromString("3.14159"))
		if err != nil {
			return err
		}
		if !taken.Amount().Equal(decimal.RequireFromString("3.14")) {
			t.Errorf("expected 3.14, got %s", taken.Amount())
		}
		if !b.Amount().Equal(decimal.RequireFromString("6.86")) {
			t.Errorf("expected 6.86 remaining, got %s", b.Amount())
		}

		if _, err := b.Take(decimal.RequireFromString("0.001")); !errors.Is(err, ErrValidation) {
			t.Errorf("expected exact take beyond divisibility to fail, got %v", err)
		}

		return alice.DepositAll(tx, taken, b)
	})
}

type gatedWorld struct {
	ledger     *Ledger
	policy     Address
	bypass     *Vault
	collection *ResourceManager
	alice      *Account
	bob        *Account
	asset      GlobalID
}

func newGatedWorld(t *testing.T) *gatedWorld {
	t.Helper()

	w := &gatedWorld{ledger: New()}
	mustExecute(t, w.ledger, nil, func(tx *Tx) error {
		var err error
		if w.alice, err = NewAccount(tx, "alice"); err != nil {
			return err
		}
		if w.bob, err = NewAccount(tx, "bob"); err != nil {
			return err
		}

		_, badge, err := tx.NewResourceWithSupply(ResourceSpec{Type: Fungible}, decimal.NewFromInt(1))
		if err != nil {
			return err
		}
		if w.bypass, err = VaultWithBucket(tx, badge); err != nil {
			return err
		}

		w.policy = tx.AllocateAddress(KindComponent)

		return tx.Call(w.policy, func() error {
			w.collection, err = tx.NewResource(ResourceSpec{
				Type:        NonFungible,
				DepositRule: RoyaltyGate{Bypass: w.bypass.Resource(), Policy: w.policy},
			})
			if err != nil {
				return err
			}
			b, err := w.collection.MintNonFungible(tx, IntegerID(1))
			if err != nil {
				return err
			}
			w.asset = NewGlobalID(w.collection.Address(), IntegerID(1))

			return w.alice.Deposit(tx, b)
		})
	})

	return w
}

func TestRoyaltyGateBlocksPeerToPeerDeposit(t *testing.T) {
	w := newGatedWorld(t)

	_, err := w.ledger.Execute(context.Background(), []Identity{"alice"}, func(tx *Tx) error {
		b, err := w.alice.WithdrawNonFungible(tx, w.asset)
		if err != nil {
			return err
		}
		return w.bob.Deposit(tx, b)
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected gate to deny, got %v", err)
	}
	if !w.alice.Holds(w.asset) {
		t.Error("asset should be back with alice")
	}
}

func TestRoyaltyGateAdmitsBypassProof(t *testing.T) {
	w := newGatedWorld(t)

	mustExecute(t, w.ledger, []Identity{"alice"}, func(tx *Tx) error {
		b, err := w.alice.WithdrawNonFungible(tx, w.asset)
		if err != nil {
			return err
		}
		proof, err := w.bypass.CreateProof(tx)
		if err != nil {
			return err
		}
		return tx.Authorize(proof, func() error { return w.bob.Deposit(tx, b) })
	})

	if !w.bob.Holds(w.asset) {
		t.Error("bob should hold the asset")
	}
}

func TestTransferTicketIsSingleUseAndScoped(t *testing.T) {
	w := newGatedWorld(t)
	target := w.bob.Address()

	_, err := w.ledger.Execute(context.Background(), []Identity{"alice", "bob"}, func(tx *Tx) error {
		b, err := w.alice.WithdrawNonFungible(tx, w.asset)
		if err != nil {
			return err
		}

		var ticket *TransferTicket
		_ = tx.Call(w.policy, func() error {
			ticket = tx.IssueTicket(target, b)
			return nil
		})

		if err := tx.WithTicket(ticket, func() error {
			return tx.Call(target, func() error { return w.bob.Deposit(tx, b) })
		}); err != nil {
			return err
		}
		if !ticket.Redeemed() {
			t.Error("ticket should be redeemed")
		}

		again, err := w.bob.WithdrawNonFungible(tx, w.asset)
		if err != nil {
			return err
		}

		// the redeemed ticket does not admit a second deposit
		err = tx.WithTicket(ticket, func() error {
			return tx.Call(target, func() error { return w.alice.Deposit(tx, again) })
		})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("expected redeemed ticket to be refused, got %v", err)
		}

		return tx.Call(w.policy, func() error { return w.alice.Deposit(tx, again) })
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestAddressKind(t *testing.T) {
	l := New()
	mustExecute(t, l, nil, func(tx *Tx) error {
		a, err := NewAccount(tx, "alice")
		if err != nil {
			return err
		}
		if a.Address().Kind() != KindAccount {
			t.Errorf("expected account kind, got %q", a.Address().Kind())
		}
		if tx.AllocateAddress(KindComponent).Kind() != KindComponent {
			t.Error("expected component kind")
		}
		return nil
	})

	id, err := ParseGlobalID("resource_zil1abc:#1#")
	if err != nil || id.Local != IntegerID(1) || id.Resource.Kind() != KindResource {
		t.Errorf("unexpected parse result %+v, %v", id, err)
	}
}
