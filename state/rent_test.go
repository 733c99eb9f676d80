package state

import (
	"errors"
	"testing"

	"github.com/cascoin/cascoin-l2/core/types"
)

func TestProcessStateRentCharges(t *testing.T) {
	m := newTestManager(t)
	m.SetFeeCollector(carol)
	fund(t, m, alice, 1_000_000)

	cfg := DefaultRentConfig()
	cfg.RentPerBytePerYear = 1_000_000
	cfg.GracePeriodBlocks = 100

	if got := m.ProcessStateRent(1_000, cfg); got != 1 {
		t.Fatalf("charged %d accounts, want 1", got)
	}
	rent := int64(accountBaseSize) * cfg.RentPerBytePerYear * 1_000 / blocksPerYear
	if got := m.GetAccountState(alice).Balance; got != 1_000_000-rent {
		t.Fatalf("balance = %d, want %d", got, 1_000_000-rent)
	}
	// Rent moves to the collector; it does not vanish.
	if got := m.GetAccountState(carol).Balance; got != rent {
		t.Fatalf("collector balance = %d, want %d", got, rent)
	}
}

func TestProcessStateRentGracePeriod(t *testing.T) {
	m := newTestManager(t)
	if err := m.Mint(alice, 1_000_000, 950); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	cfg := DefaultRentConfig()
	cfg.RentPerBytePerYear = 1_000_000
	cfg.GracePeriodBlocks = 100

	if got := m.ProcessStateRent(1_000, cfg); got != 0 {
		t.Fatalf("charged %d accounts inside grace period", got)
	}
	if got := m.GetAccountState(alice).Balance; got != 1_000_000 {
		t.Fatalf("balance = %d, want untouched", got)
	}
}

func TestProcessStateRentArchivesInsolvent(t *testing.T) {
	m := newTestManager(t)
	fund(t, m, alice, 500) // below the minimum balance

	cfg := DefaultRentConfig()
	cfg.RentPerBytePerYear = 1_000_000
	cfg.GracePeriodBlocks = 0

	if got := m.ProcessStateRent(10_000, cfg); got != 0 {
		t.Fatalf("charged %d accounts, want 0", got)
	}
	acc := m.GetAccountState(alice)
	if !acc.IsEmpty() {
		t.Fatal("insolvent account still in active state")
	}
	if _, ok := m.ArchivedState(alice); !ok {
		t.Fatal("insolvent account not archived")
	}
}

func TestArchiveAndRestore(t *testing.T) {
	m := newTestManager(t)
	fund(t, m, alice, 12_345)
	if err := m.Mint(bob, 999, 400); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	rootBefore := m.Root()

	// Alice idle since block 0 is evicted; bob active at 400 stays.
	if got := m.ArchiveInactive(500, 100); got != 1 {
		t.Fatalf("archived %d accounts, want 1", got)
	}
	acc := m.GetAccountState(alice)
	if !acc.IsEmpty() {
		t.Fatal("archived account still readable from active state")
	}
	if got := m.GetAccountState(bob).Balance; got != 999 {
		t.Fatalf("active account disturbed: %d", got)
	}

	held, ok := m.ArchivedState(alice)
	if !ok {
		t.Fatal("no archived record")
	}
	if held.ArchiveRoot != rootBefore {
		t.Fatal("archive root is not the pre-eviction root")
	}
	if held.Proof == nil || !held.Proof.Verify(held.ArchiveRoot) {
		t.Fatal("archive proof does not verify against archive root")
	}

	// A tampered record must not restore.
	bad := *held
	bad.State.Balance++
	if err := m.RestoreArchived(alice, &bad, 600); !errors.Is(err, ErrArchiveMismatch) {
		t.Fatalf("tampered restore = %v, want %v", err, ErrArchiveMismatch)
	}

	if err := m.RestoreArchived(alice, held, 600); err != nil {
		t.Fatalf("RestoreArchived: %v", err)
	}
	restored := m.GetAccountState(alice)
	if restored.Balance != 12_345 {
		t.Fatalf("restored balance = %d", restored.Balance)
	}
	if restored.LastActivity != 600 {
		t.Fatalf("restored activity = %d, want 600", restored.LastActivity)
	}
	if err := m.RestoreArchived(alice, held, 601); !errors.Is(err, ErrNotArchived) {
		t.Fatalf("double restore = %v, want %v", err, ErrNotArchived)
	}
}

func TestRestoreUnknownAddress(t *testing.T) {
	m := newTestManager(t)
	rec := &ArchivedAccount{State: types.AccountState{Balance: 1}}
	if err := m.RestoreArchived(alice, rec, 1); !errors.Is(err, ErrNotArchived) {
		t.Fatalf("RestoreArchived = %v, want %v", err, ErrNotArchived)
	}
}
