package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"divergenceBot/internal/ports"
)

// FailureClass tells how a failed cycle is reported.
type FailureClass string

const (
	// ClassTransient covers venue and network failures; the next cycle retries.
	ClassTransient FailureClass = "transient"
	// ClassProgrammer covers panics and broken configuration.
	ClassProgrammer FailureClass = "programmer"
)

// PanicError carries a panic recovered from a cycle.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in trading cycle: %v", e.Value)
}

// ClassifyFailure maps a cycle error to its failure class.
func ClassifyFailure(err error) FailureClass {
	var pe *PanicError
	if errors.As(err, &pe) || errors.Is(err, ports.ErrConfigurationError) {
		return ClassProgrammer
	}
	return ClassTransient
}

// Run loads the instrument filters, then polls until ctx is cancelled.
// Cancellation is observed between cycles; a cycle in flight runs to completion.
func (s *TradingService) Run(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{
		"symbol":       s.cfg.Symbol,
		"interval":     s.cfg.Interval,
		"pollInterval": s.cfg.PollInterval.String(),
	})

	if err := s.initialize(ctx); err != nil {
		return err
	}

	for {
		s.superviseCycle(ctx)

		timer := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info(ctx, "Trading Service stopped.")
			return nil
		case <-timer.C:
		}
	}
}

// initialize synchronizes the clock and fetches the instrument filters,
// retrying every poll interval until it succeeds or ctx is cancelled.
func (s *TradingService) initialize(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := s.loadInstrument(ctx)
		if err == nil {
			return nil
		}
		s.logger.Warn(ctx, "Initialization failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
			"retryIn": s.cfg.PollInterval.String(),
		})

		timer := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *TradingService) loadInstrument(ctx context.Context) error {
	callCtx, cancel := s.requestContext(ctx)
	defer cancel()

	if err := s.exchange.SetServerTime(callCtx); err != nil {
		return fmt.Errorf("failed to set server time: %w", err)
	}
	s.logger.Info(ctx, "Server time synchronized")

	instrument, err := s.exchange.GetInstrument(callCtx, s.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("failed to fetch instrument filters: %w", err)
	}
	if instrument.QuantityStep <= 0 {
		return fmt.Errorf("%w: quantity step %f for %s", ports.ErrConfigurationError, instrument.QuantityStep, s.cfg.Symbol)
	}

	s.mu.Lock()
	s.instrument = instrument
	s.mu.Unlock()

	s.logger.Info(ctx, "Instrument filters loaded", map[string]interface{}{
		"symbol":       instrument.Symbol,
		"quantityStep": instrument.QuantityStep,
		"priceTick":    instrument.PriceTick,
	})
	return nil
}

// superviseCycle runs one cycle, recovering panics and reporting failures.
// It never returns an error: one bad cycle must not stop the loop.
func (s *TradingService) superviseCycle(ctx context.Context) {
	start := time.Now()
	err := s.safeCycle(context.WithoutCancel(ctx))
	s.metrics.ObserveCycle(time.Since(start).Seconds())

	s.mu.Lock()
	s.lastCycleAt = s.now()
	s.lastCycleErr = err
	s.mu.Unlock()

	if err == nil {
		return
	}

	class := ClassifyFailure(err)
	s.metrics.CycleFailed(string(class))
	fields := map[string]interface{}{"class": string(class)}
	if class == ClassProgrammer {
		var pe *PanicError
		if errors.As(err, &pe) {
			fields["stack"] = string(pe.Stack)
		}
		s.logger.Error(ctx, err, "Trading cycle failed", fields)
		return
	}
	fields["error"] = err.Error()
	s.logger.Warn(ctx, "Trading cycle failed, retrying next poll", fields)
}

func (s *TradingService) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return s.RunCycle(ctx)
}
