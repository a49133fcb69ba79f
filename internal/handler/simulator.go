package handler

import (
	"net/http"

	"github.com/gippro/learnsync/internal/events"
	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/simulator"
)

// Market is the practice trading simulator
type Market interface {
	Snapshot() simulator.Snapshot
	Trade(side simulator.Side) (simulator.Trade, error)
}

// Publisher broadcasts events to SSE subscribers
type Publisher interface {
	Publish(event *events.Event)
}

// SimulatorHandler handles the practice market endpoints
type SimulatorHandler struct {
	market    Market
	publisher Publisher
}

// NewSimulatorHandler creates a new simulator handler. publisher may be nil.
func NewSimulatorHandler(market Market, publisher Publisher) *SimulatorHandler {
	return &SimulatorHandler{market: market, publisher: publisher}
}

// Get handles GET /v1/simulator
func (h *SimulatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, h.market.Snapshot(), map[string]string{
		"trade":  "/v1/simulator/trade",
		"stream": "/v1/events?topic=" + events.TopicSimulator,
	})
}

// TradeRequest is a paper trade order
type TradeRequest struct {
	Side simulator.Side `json:"side"`
}

// Trade handles POST /v1/simulator/trade
func (h *SimulatorHandler) Trade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	trade, err := h.market.Trade(req.Side)
	if err != nil {
		WriteError(w, MapError(err))
		return
	}
	if h.publisher != nil {
		h.publisher.Publish(events.NewEvent(events.TypeSimulatorTrade, events.TopicSimulator, trade))
	}
	WriteData(w, http.StatusOK, trade, nil)
}
