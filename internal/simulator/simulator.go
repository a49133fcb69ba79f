// Package simulator runs the EUR/USD practice market: a random-walk price
// with a fixed-size chart window and a paper-trading balance.
package simulator

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Market parameters
const (
	Pair         = "EUR/USD"
	StartPrice   = 1.1050
	MaxStep      = 0.0010
	WindowSize   = 100
	MinRange     = 0.0001
	StartBalance = 10000.0
)

// ErrInvalidSide rejects a trade that is neither buy nor sell
var ErrInvalidSide = errors.New("invalid trade side")

// Side is a trade direction
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Valid reports whether s is buy or sell
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Trade is the outcome of one paper trade
type Trade struct {
	Side    Side    `json:"side"`
	Price   float64 `json:"price"`
	PnL     float64 `json:"pnl"`
	Balance float64 `json:"balance"`
}

// Snapshot is the chart and account state
type Snapshot struct {
	Pair    string    `json:"pair"`
	Price   float64   `json:"price"`
	Points  []float64 `json:"points"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Range   float64   `json:"range"`
	Balance float64   `json:"balance"`
	Trades  int       `json:"trades"`
}

// Simulator is safe for concurrent use
type Simulator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	points  []float64
	balance float64
	trades  int
}

// New creates a simulator. A nil source seeds from the clock.
func New(src rand.Source) *Simulator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulator{
		rng:     rand.New(src),
		points:  []float64{StartPrice},
		balance: StartBalance,
	}
}

// Step moves the price by a uniform step in [-MaxStep/2, MaxStep/2) and
// returns the new price. The window keeps the last WindowSize points.
func (s *Simulator) Step() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.points[len(s.points)-1]
	next := last + (s.rng.Float64()-0.5)*MaxStep
	s.points = append(s.points, next)
	if len(s.points) > WindowSize {
		s.points = append(s.points[:0:0], s.points[len(s.points)-WindowSize:]...)
	}
	return next
}

// Price returns the latest price
func (s *Simulator) Price() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[len(s.points)-1]
}

// Range returns the window bounds and their span. A flat window reports
// MinRange so chart scaling never divides by zero.
func (s *Simulator) Range() (lo, hi, span float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rangeLocked()
}

func (s *Simulator) rangeLocked() (lo, hi, span float64) {
	lo, hi = s.points[0], s.points[0]
	for _, p := range s.points[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	span = hi - lo
	if span == 0 {
		span = MinRange
	}
	return lo, hi, span
}

// Trade books a paper trade. The outcome is uniform in [-10, 40) whatever the side.
func (s *Simulator) Trade(side Side) (Trade, error) {
	if !side.Valid() {
		return Trade{}, ErrInvalidSide
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pnl := s.rng.Float64()*50 - 10
	s.balance += pnl
	s.trades++
	return Trade{
		Side:    side,
		Price:   s.points[len(s.points)-1],
		PnL:     pnl,
		Balance: s.balance,
	}, nil
}

// Snapshot returns a copy of the current state
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi, span := s.rangeLocked()
	return Snapshot{
		Pair:    Pair,
		Price:   s.points[len(s.points)-1],
		Points:  append([]float64{}, s.points...),
		Min:     lo,
		Max:     hi,
		Range:   span,
		Balance: s.balance,
		Trades:  s.trades,
	}
}
