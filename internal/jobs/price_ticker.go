package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gippro/learnsync/internal/events"
	"github.com/gippro/learnsync/internal/simulator"
)

// Publisher receives ticks
type Publisher interface {
	Publish(event *events.Event)
}

// Tick is the data of a simulator tick event
type Tick struct {
	Pair  string    `json:"pair"`
	Price float64   `json:"price"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Range float64   `json:"range"`
	At    time.Time `json:"at"`
}

// PriceTicker advances the practice market on an interval and publishes each tick
type PriceTicker struct {
	sim       *simulator.Simulator
	publisher Publisher
	interval  time.Duration
	logger    *slog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewPriceTicker creates a ticker job. publisher may be nil.
func NewPriceTicker(sim *simulator.Simulator, publisher Publisher, interval time.Duration, logger *slog.Logger) *PriceTicker {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceTicker{
		sim:       sim,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins ticking
func (p *PriceTicker) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
	p.logger.Info("price ticker started", "interval", p.interval)
}

// Stop halts ticking and waits for the loop to exit
func (p *PriceTicker) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("price ticker stopped")
}

func (p *PriceTicker) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = p.RunOnce(context.Background())
		case <-p.stopCh:
			return
		}
	}
}

// RunOnce advances the market by one step and publishes the tick
func (p *PriceTicker) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	price := p.sim.Step()
	lo, hi, span := p.sim.Range()

	if p.publisher != nil {
		p.publisher.Publish(events.NewEvent(events.TypeSimulatorTick, events.TopicSimulator, Tick{
			Pair:  simulator.Pair,
			Price: price,
			Min:   lo,
			Max:   hi,
			Range: span,
			At:    time.Now().UTC(),
		}))
	}
	return nil
}

// IsRunning returns whether the ticker is running
func (p *PriceTicker) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
