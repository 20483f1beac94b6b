// Package jobs schedules the recurring pickup and tracking cycles.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Runner executes pickup and tracking cycles for one carrier.
type Runner interface {
	RequestPickups(ctx context.Context, fields shipper.Fields) ([]shipper.PickupConfirmation, error)
	UpdateShipments(ctx context.Context, fields shipper.Fields) error
}

// Config lists the schedules and the carriers they run for. Schedules use
// the six-field cron syntax with seconds. An empty schedule disables the job.
type Config struct {
	PickupSchedule   string
	TrackingSchedule string
	PickupCarriers   []string
	TrackingCarriers []string
	Timeout          time.Duration
}

// Manager owns the cron scheduler of all cycles.
type Manager struct {
	cfg    Config
	runner Runner
	cron   *cron.Cron
	logger *otelzap.Logger
}

// NewManager creates a job manager.
func NewManager(cfg Config, runner Runner, logger *otelzap.Logger) *Manager {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Manager{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// StartAll registers the cycles and starts the scheduler.
func (m *Manager) StartAll() error {
	if m.cfg.PickupSchedule != "" {
		if _, err := m.cron.AddFunc(m.cfg.PickupSchedule, m.scheduled(m.RunPickups)); err != nil {
			return fmt.Errorf("failed to schedule pickup job: %w", err)
		}
	}
	if m.cfg.TrackingSchedule != "" {
		if _, err := m.cron.AddFunc(m.cfg.TrackingSchedule, m.scheduled(m.RunTracking)); err != nil {
			return fmt.Errorf("failed to schedule tracking job: %w", err)
		}
	}

	m.cron.Start()
	m.logger.Info("Jobs started",
		zap.String("pickup_schedule", m.cfg.PickupSchedule),
		zap.String("tracking_schedule", m.cfg.TrackingSchedule),
	)
	return nil
}

// StopAll stops the scheduler and waits for running cycles.
func (m *Manager) StopAll() {
	<-m.cron.Stop().Done()
	m.logger.Info("Jobs stopped")
}

func (m *Manager) scheduled(job func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
		defer cancel()
		_ = job(ctx)
	}
}

// RunPickups runs one pickup cycle per configured carrier. A failing
// carrier does not stop the others.
func (m *Manager) RunPickups(ctx context.Context) error {
	var errs []error
	for _, carrier := range m.cfg.PickupCarriers {
		confs, err := m.runner.RequestPickups(ctx, shipper.Fields{"shipper": carrier})
		if err != nil {
			m.logger.Ctx(ctx).Error("Pickup cycle failed", zap.String("carrier", carrier), zap.Error(err))
			errs = append(errs, fmt.Errorf("pickups %s: %w", carrier, err))
			continue
		}
		for _, c := range confs {
			if c.Err != nil {
				errs = append(errs, fmt.Errorf("pickups %s at %s: %w", carrier, c.LocationID, c.Err))
			}
		}
	}
	return errors.Join(errs...)
}

// RunTracking runs one tracking cycle per configured carrier.
func (m *Manager) RunTracking(ctx context.Context) error {
	var errs []error
	for _, carrier := range m.cfg.TrackingCarriers {
		if err := m.runner.UpdateShipments(ctx, shipper.Fields{"shipper": carrier}); err != nil {
			m.logger.Ctx(ctx).Error("Tracking cycle failed", zap.String("carrier", carrier), zap.Error(err))
			errs = append(errs, fmt.Errorf("tracking %s: %w", carrier, err))
		}
	}
	return errors.Join(errs...)
}
