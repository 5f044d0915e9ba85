package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"relief-dao/internal/domain"
	"relief-dao/pkg/logger"
)

// SweepResult counts what a single sweep did
type SweepResult struct {
	Concluded   int `json:"concluded"`
	Distributed int `json:"distributed"`
	Failed      int `json:"failed"`
}

// settlementMonitor concludes expired elections and pays out winners on a
// fixed interval. Units without a winner are left for donors to refund.
type settlementMonitor struct {
	events   *EventService
	logger   *logger.Logger
	interval time.Duration

	mu        sync.Mutex
	ticker    *time.Ticker
	stop      chan struct{}
	done      chan struct{}
	isRunning bool
}

// NewSettlementMonitor creates a new settlement monitor
func NewSettlementMonitor(events *EventService, logger *logger.Logger, interval time.Duration) SettlementMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &settlementMonitor{
		events:   events,
		logger:   logger,
		interval: interval,
	}
}

// Start begins periodic sweeps
func (m *settlementMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return nil
	}

	m.logger.WithField("interval", m.interval.String()).Info("Starting settlement monitor...")

	m.ticker = time.NewTicker(m.interval)
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.sweepRoutine(ctx, m.ticker, m.stop, m.done)

	m.isRunning = true
	return nil
}

// Stop gracefully shuts down the monitor, waiting for an in-flight sweep until
// ctx is done. The monitor counts as stopped even when the wait times out.
func (m *settlementMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}

	m.logger.Info("Stopping settlement monitor...")
	m.ticker.Stop()
	close(m.stop)
	m.isRunning = false
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Settlement monitor did not stop in time")
		return ctx.Err()
	}

	m.logger.Info("Settlement monitor stopped")
	return nil
}

// Sweep concludes every unit awaiting conclusion and distributes every unit
// whose winner has not been paid
func (m *settlementMonitor) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	for _, u := range m.events.currentSummaries() {
		status := u.Status
		if status == domain.StatusAwaitingConclusion {
			out, err := m.events.ConcludeElection(ctx, u.ID)
			if err != nil {
				if !errors.Is(err, domain.ErrAlreadyConcluded) {
					result.Failed++
				}
				continue
			}
			result.Concluded++
			if !out.HasWinner {
				continue
			}
			status = domain.StatusDistributionPending
		}

		if status == domain.StatusDistributionPending {
			if _, err := m.events.DistributeFunds(ctx, u.ID); err != nil {
				if !errors.Is(err, domain.ErrAlreadyDistributed) {
					result.Failed++
				}
				continue
			}
			result.Distributed++
		}
	}

	if result.Concluded+result.Distributed+result.Failed > 0 {
		m.logger.WithFields(map[string]interface{}{
			"concluded":   result.Concluded,
			"distributed": result.Distributed,
			"failed":      result.Failed,
		}).Info("Settlement sweep finished")
	}
	return result
}

func (m *settlementMonitor) sweepRoutine(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ticker.C:
			m.Sweep(ctx)
		case <-stop:
			m.logger.Debug("Settlement routine stopped")
			return
		case <-ctx.Done():
			m.logger.Debug("Settlement routine cancelled")
			return
		}
	}
}
