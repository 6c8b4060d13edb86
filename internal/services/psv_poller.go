package services

import (
	"context"
	"errors"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"go.uber.org/zap"
)

type psvRedispatcher interface {
	ListProviders(ctx context.Context, filter ProviderFilter) ([]*models.Provider, int64, error)
	DispatchCheck(ctx context.Context, id string, check models.CheckType) (*models.Provider, <-chan DispatchResult, error)
}

type inFlightChecker interface {
	InFlight(providerID string, check models.CheckType) bool
}

// polledStatuses hold providers whose open checks the poller keeps moving. A
// PSVFailed provider may still carry pending checks next to the failed one.
var polledStatuses = []models.ProviderStatus{models.StatusPSVInProgress, models.StatusPSVFailed}

// PSVPoller re-dispatches checks of providers in PSV that were never started
// or have been pending for too long. Failed checks are left to an operator.
type PSVPoller struct {
	service    psvRedispatcher
	inflight   inFlightChecker
	degraded   *DegradedMode
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	logger     *logging.SafeLogger
}

// NewPSVPoller creates a poller. inflight and degraded may be nil.
func NewPSVPoller(service psvRedispatcher, inflight inFlightChecker, degraded *DegradedMode, interval, staleAfter time.Duration, logger *logging.SafeLogger) *PSVPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.Logger
	}
	return &PSVPoller{
		service:    service,
		inflight:   inflight,
		degraded:   degraded,
		interval:   interval,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.Named("psv_poller"),
	}
}

// Start polls until ctx is done
func (p *PSVPoller) Start(ctx context.Context) {
	p.logger.Info("psv poller started",
		zap.Duration("interval", p.interval),
		zap.Duration("stale_after", p.staleAfter))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("psv poller stopped")
			return
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("psv poll failed", zap.Error(err))
			}
		}
	}
}

// PollOnce runs one pass and returns how many checks were dispatched
func (p *PSVPoller) PollOnce(ctx context.Context) (int, error) {
	if p.degraded != nil && p.degraded.IsActive() {
		p.logger.Debug("skipping psv poll due to degraded mode",
			zap.String("reason", p.degraded.GetReason()),
			zap.Duration("degraded_for", p.degraded.GetDuration()))
		return 0, nil
	}

	var providers []*models.Provider
	for _, status := range polledStatuses {
		page, _, err := p.service.ListProviders(ctx, ProviderFilter{Status: status})
		if err != nil {
			return 0, err
		}
		providers = append(providers, page...)
	}

	now := p.now()
	dispatched := 0
	for _, provider := range providers {
		for _, check := range StaleChecks(provider.PSVStatus, now, p.staleAfter) {
			if ctx.Err() != nil {
				return dispatched, ctx.Err()
			}
			if p.inflight != nil && p.inflight.InFlight(provider.ID, check) {
				continue
			}

			_, _, err := p.service.DispatchCheck(ctx, provider.ID, check)
			switch {
			case err == nil:
				dispatched++
			case errors.Is(err, models.ErrCheckInFlight):
			case models.IsInvalidTransition(err):
				// the provider left PSV since the listing
				p.logger.Debug("provider moved on before redispatch", zap.String("provider_id", provider.ID))
			case errors.Is(err, models.ErrQueueFull), errors.Is(err, models.ErrDispatcherStopped):
				p.logger.Warn("stopping psv poll early", zap.Error(err))
				return dispatched, nil
			default:
				p.logger.Error("failed to redispatch check",
					zap.String("provider_id", provider.ID),
					zap.String("check", string(check)),
					zap.Error(err))
			}
		}
	}

	if dispatched > 0 {
		p.logger.Info("psv poll dispatched checks", zap.Int("dispatched", dispatched))
	}
	return dispatched, nil
}
