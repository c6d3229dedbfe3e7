package app

import (
	"time"

	"divergenceBot/internal/domain"
)

// ActivityEntry is one line of the activity log.
type ActivityEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// PositionStatus is the open position as last reported by the exchange.
type PositionStatus struct {
	Side          domain.OrderSide `json:"side"`
	Size          float64          `json:"size"`
	EntryPrice    float64          `json:"entryPrice"`
	UnrealizedPnL float64          `json:"unrealizedPnl"`
}

// TradeStatus is one closed trade of the history.
type TradeStatus struct {
	Side        domain.OrderSide `json:"side"`
	Win         bool             `json:"win"`
	RealizedPnL float64          `json:"realizedPnl"`
	ExitPrice   float64          `json:"exitPrice"`
	CloseTime   time.Time        `json:"closeTime"`
	Line        string           `json:"line"`
}

// Status is a point-in-time view of the bot, served on /status.
type Status struct {
	Symbol         string               `json:"symbol"`
	State          domain.PositionState `json:"state"`
	StartedAt      time.Time            `json:"startedAt"`
	Uptime         string               `json:"uptime"`
	Position       *PositionStatus      `json:"position,omitempty"`
	LastCandle     *time.Time           `json:"lastCandle,omitempty"`
	LastOscillator *float64             `json:"lastOscillator,omitempty"`
	LastCycleAt    *time.Time           `json:"lastCycleAt,omitempty"`
	LastError      string               `json:"lastError,omitempty"`
	Trades         []TradeStatus        `json:"trades"`   // newest first
	Activity       []ActivityEntry      `json:"activity"` // oldest first
}

// recordActivity appends a message to the activity log.
func (s *TradingService) recordActivity(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activityLog.Push(ActivityEntry{Time: s.now(), Message: msg})
}

// Snapshot returns the current status. It is safe to call from any goroutine.
func (s *TradingService) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Status{
		Symbol:    s.cfg.Symbol,
		State:     s.stateLocked(),
		StartedAt: s.startTime,
		Uptime:    now.Sub(s.startTime).Truncate(time.Second).String(),
		Activity:  s.activityLog.Items(),
	}

	if s.lastPositionSize > 0 {
		st.Position = &PositionStatus{
			Side:          s.position.Side,
			Size:          s.position.Size,
			EntryPrice:    s.position.EntryPrice,
			UnrealizedPnL: s.position.UnrealizedPnL,
		}
	}
	if !s.lastCandleTime.IsZero() {
		t := s.lastCandleTime
		st.LastCandle = &t
	}
	if s.lastAnalysis != nil && s.lastAnalysis.WindowSize > 0 {
		v := s.lastAnalysis.LastOscillator
		st.LastOscillator = &v
	}
	if !s.lastCycleAt.IsZero() {
		t := s.lastCycleAt
		st.LastCycleAt = &t
	}
	if s.lastCycleErr != nil {
		st.LastError = s.lastCycleErr.Error()
	}

	trades := s.tradeHistory.Items()
	st.Trades = make([]TradeStatus, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		st.Trades = append(st.Trades, TradeStatus{
			Side:        t.Side,
			Win:         t.IsWin(),
			RealizedPnL: t.RealizedPnL,
			ExitPrice:   t.ExitPrice,
			CloseTime:   t.CloseTime,
			Line:        t.String(),
		})
	}
	return st
}

// StatusReport adapts Snapshot for HTTP handlers that serve any value.
func (s *TradingService) StatusReport() interface{} {
	return s.Snapshot()
}
