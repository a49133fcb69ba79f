package simulator

import (
	"math"
	"math/rand"
	"testing"
)

func TestNew(t *testing.T) {
	s := New(rand.NewSource(1))
	if s.Price() != StartPrice {
		t.Errorf("Price() = %v, want %v", s.Price(), StartPrice)
	}
	lo, hi, span := s.Range()
	if lo != StartPrice || hi != StartPrice || span != MinRange {
		t.Errorf("Range() = %v, %v, %v", lo, hi, span)
	}
	if snap := s.Snapshot(); snap.Balance != StartBalance || snap.Pair != Pair {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestStep_BoundedAndWindowed(t *testing.T) {
	s := New(rand.NewSource(7))

	prev := s.Price()
	for i := 0; i < 500; i++ {
		next := s.Step()
		if math.Abs(next-prev) > MaxStep/2+1e-12 {
			t.Fatalf("step %d moved %v, more than %v", i, next-prev, MaxStep/2)
		}
		prev = next
	}

	snap := s.Snapshot()
	if len(snap.Points) != WindowSize {
		t.Fatalf("window holds %d points, want %d", len(snap.Points), WindowSize)
	}
	if snap.Points[len(snap.Points)-1] != snap.Price {
		t.Error("last point must be the current price")
	}
	if snap.Min > snap.Max || snap.Range <= 0 {
		t.Errorf("bad range %v..%v (%v)", snap.Min, snap.Max, snap.Range)
	}
}

func TestStep_Deterministic(t *testing.T) {
	a := New(rand.NewSource(99))
	b := New(rand.NewSource(99))
	for i := 0; i < 20; i++ {
		if a.Step() != b.Step() {
			t.Fatal("same seed must give the same walk")
		}
	}
}

func TestTrade(t *testing.T) {
	s := New(rand.NewSource(3))

	balance := StartBalance
	for i := 0; i < 200; i++ {
		side := Buy
		if i%2 == 1 {
			side = Sell
		}
		tr, err := s.Trade(side)
		if err != nil {
			t.Fatal(err)
		}
		if tr.PnL < -10 || tr.PnL >= 40 {
			t.Fatalf("pnl %v out of [-10, 40)", tr.PnL)
		}
		balance += tr.PnL
		if math.Abs(tr.Balance-balance) > 1e-9 {
			t.Fatalf("balance %v, want %v", tr.Balance, balance)
		}
	}
	if s.Snapshot().Trades != 200 {
		t.Errorf("trades = %d", s.Snapshot().Trades)
	}

	if _, err := s.Trade("hold"); err != ErrInvalidSide {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}
}
