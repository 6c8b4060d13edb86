package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatcher runs verification checks out of band
type Dispatcher interface {
	Dispatch(ctx context.Context, providerID string, check models.CheckType) (<-chan DispatchResult, error)
	Cancel(providerID string, check models.CheckType) bool
	InFlight(providerID string, check models.CheckType) bool
}

// Auditor records who changed what
type Auditor interface {
	Log(ctx context.Context, action, resource, resourceID string, oldValue, newValue interface{}, metadata map[string]string) error
}

type noopAuditor struct{}

func (noopAuditor) Log(context.Context, string, string, string, interface{}, interface{}, map[string]string) error {
	return nil
}

// CredentialingDeps wires a CredentialingService
type CredentialingDeps struct {
	Store      ProviderStore
	Locker     ProviderLocker
	Validator  *ValidationEngine
	Notifier   Notifier
	Dispatcher Dispatcher
	Auditor    Auditor
	Clock      func() time.Time
	MaxRetries int
	Logger     *logging.SafeLogger
}

// CredentialingService owns every write to a provider. Writes to one id are serialized
// by the locker and checked against the stored version.
type CredentialingService struct {
	store      ProviderStore
	locker     ProviderLocker
	validator  *ValidationEngine
	notifier   Notifier
	dispatcher Dispatcher
	auditor    Auditor
	now        func() time.Time
	maxRetries int
	logger     *logging.SafeLogger
}

// NewCredentialingService creates the service, defaulting optional collaborators
func NewCredentialingService(deps CredentialingDeps) *CredentialingService {
	s := &CredentialingService{
		store:      deps.Store,
		locker:     deps.Locker,
		validator:  deps.Validator,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		auditor:    deps.Auditor,
		now:        deps.Clock,
		maxRetries: deps.MaxRetries,
		logger:     deps.Logger,
	}
	if s.locker == nil {
		s.locker = NewKeyedLocker()
	}
	if s.validator == nil {
		s.validator = NewValidationEngine()
	}
	if s.notifier == nil {
		s.notifier = NewFanoutNotifier()
	}
	if s.auditor == nil {
		s.auditor = noopAuditor{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.maxRetries < 0 {
		s.maxRetries = 0
	}
	if s.logger == nil {
		s.logger = logging.Logger
	}
	s.logger = s.logger.Named("credentialing")
	return s
}

// step is one lifecycle move made inside a mutation
type step struct {
	from  models.ProviderStatus
	to    models.ProviderStatus
	event models.LifecycleEvent
}

// mutation is the working copy handed to a write
type mutation struct {
	p     *models.Provider
	now   time.Time
	steps []step
}

func (m *mutation) apply(event models.LifecycleEvent) error {
	next, err := Transition(m.p.Status, event)
	if err != nil {
		observability.InvalidTransitions.WithLabelValues(string(m.p.Status), string(event)).Inc()
		return err
	}
	m.steps = append(m.steps, step{from: m.p.Status, to: next, event: event})
	m.p.Status = next
	return nil
}

// mutate runs fn against a fresh copy of the provider and saves the result.
// fn must be free of side effects: it may run again after a version conflict.
func (s *CredentialingService) mutate(ctx context.Context, id string, fn func(m *mutation) error) (*models.Provider, error) {
	ctx, span, end := utils.TraceOperation(ctx, "credentialing.mutate", map[string]interface{}{"provider.id": id})
	defer end()

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"stage": "lock"})
		return nil, err
	}
	defer unlock()

	var (
		saved *models.Provider
		steps []step
	)
	attempts := 0
	err = utils.RetryWithOptimisticLock(ctx, s.maxRetries, func() error {
		attempts++
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}

		m := &mutation{p: current.Clone(), now: s.now()}
		if err := fn(m); err != nil {
			return err
		}
		m.p.UpdatedAt = m.now

		out, err := s.store.Save(ctx, m.p)
		if err != nil {
			return err
		}
		saved, steps = out, m.steps
		return nil
	})
	if attempts > 1 {
		outcome := "retried"
		if models.IsConflict(err) {
			outcome = "exhausted"
		}
		observability.StoreConflicts.WithLabelValues(outcome).Inc()
	}
	utils.AddSpanAttribute(span, "attempts", attempts)
	if err != nil {
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"stage": "write"})
		return nil, err
	}

	if !statusConsistent(saved.Status, saved.PSVStatus.OverallStatus) {
		s.logger.Error("provider saved with inconsistent status",
			zap.String("provider_id", id),
			zap.String("status", string(saved.Status)),
			zap.String("psv_status", string(saved.PSVStatus.OverallStatus)))
	}

	s.afterWrite(ctx, saved, steps)
	return saved, nil
}

// afterWrite reports every lifecycle move of a saved mutation
func (s *CredentialingService) afterWrite(ctx context.Context, p *models.Provider, steps []step) {
	for _, st := range steps {
		observability.LifecycleTransitions.WithLabelValues(string(st.from), string(st.to), string(st.event)).Inc()
		if err := s.auditor.Log(ctx, utils.AuditActionTransition, utils.AuditResourceProvider, p.ID,
			st.from, st.to, map[string]string{"event": string(st.event)}); err != nil {
			s.logger.Warn("failed to audit transition", zap.String("provider_id", p.ID), zap.Error(err))
		}
		s.logger.Info("provider transitioned",
			zap.String("provider_id", p.ID),
			zap.String("from", string(st.from)),
			zap.String("to", string(st.to)),
			zap.String("event", string(st.event)))

		if severity, msg, ok := transitionNotice(p, st); ok {
			s.notifier.Notify(ctx, NewNotification(p.ID, st.to, severity, msg, p.UpdatedAt))
		}
	}
}

func transitionNotice(p *models.Provider, st step) (models.NotificationSeverity, string, bool) {
	name := p.DisplayName()
	switch st.to {
	case models.StatusValidationFailed:
		errs := 0
		for _, v := range p.ValidationErrors {
			if v.Severity == models.SeverityError {
				errs++
			}
		}
		return models.NotificationWarning, fmt.Sprintf("%s failed validation with %d error(s)", name, errs), true
	case models.StatusSubmitted:
		return models.NotificationSuccess, fmt.Sprintf("%s passed validation and was submitted", name), true
	case models.StatusPSVInProgress:
		if st.from == models.StatusPSVInProgress {
			return "", "", false
		}
		return models.NotificationInfo, fmt.Sprintf("primary source verification started for %s", name), true
	case models.StatusPSVFailed:
		return models.NotificationError, fmt.Sprintf("primary source verification found issues for %s", name), true
	case models.StatusCommitteePending:
		if st.event == models.EventRequestInfo {
			return models.NotificationWarning, fmt.Sprintf("committee requested more information for %s", name), true
		}
		return models.NotificationInfo, fmt.Sprintf("%s is ready for committee review", name), true
	case models.StatusCredentialed:
		return models.NotificationSuccess, fmt.Sprintf("%s has been credentialed", name), true
	case models.StatusRejected:
		return models.NotificationError, fmt.Sprintf("%s has been rejected", name), true
	}
	return "", "", false
}

// runValidation replaces the findings and closes the validation pass
func (s *CredentialingService) runValidation(m *mutation) error {
	m.p.ValidationErrors = s.validator.Validate(m.p, m.now)
	event := ValidationEvent(m.p.ValidationErrors)
	if err := m.apply(event); err != nil {
		return err
	}
	outcome := "passed"
	if event == models.EventValidationFailed {
		outcome = "failed"
	}
	observability.ValidationRuns.WithLabelValues(outcome).Inc()
	return nil
}

// Intake creates a provider from submitted details and validates it
func (s *CredentialingService) Intake(ctx context.Context, input models.ProviderInput, source models.IntakeSource) (*models.Provider, error) {
	p, err := ProviderFromInput(input, source, utils.GenerateUUID(), s.now())
	if err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	if err := s.auditor.Log(ctx, utils.AuditActionCreate, utils.AuditResourceProvider, created.ID, nil,
		map[string]string{"intake_source": string(source)}, nil); err != nil {
		s.logger.Warn("failed to audit provider creation", zap.String("provider_id", created.ID), zap.Error(err))
	}
	s.notifier.Notify(ctx, NewNotification(created.ID, created.Status, models.NotificationInfo,
		fmt.Sprintf("%s received via %s intake", created.DisplayName(), source), created.CreatedAt))

	return s.mutate(ctx, created.ID, func(m *mutation) error {
		if err := m.apply(models.EventIntakeReceived); err != nil {
			return err
		}
		return s.runValidation(m)
	})
}

// UpdateProvider edits the details of a provider still in New or ValidationFailed.
// A provider that had failed validation is validated again with the new details.
func (s *CredentialingService) UpdateProvider(ctx context.Context, id string, input models.ProviderInput) (*models.Provider, error) {
	return s.mutate(ctx, id, func(m *mutation) error {
		if !Editable(m.p.Status) {
			observability.InvalidTransitions.WithLabelValues(string(m.p.Status), string(models.EventEdit)).Inc()
			return &models.InvalidTransitionError{Current: m.p.Status, Event: models.EventEdit}
		}
		if input.IntakeSource != "" && input.IntakeSource != m.p.IntakeSource {
			return models.ErrIntakeSourceImmutable
		}
		if err := applyInput(m.p, input); err != nil {
			return err
		}
		if m.p.Status == models.StatusValidationFailed {
			if err := m.apply(models.EventRevalidate); err != nil {
				return err
			}
			return s.runValidation(m)
		}
		return nil
	})
}

// Validate runs a validation pass. From New it first applies the intake step, so a
// provider whose intake was interrupted can be resumed.
func (s *CredentialingService) Validate(ctx context.Context, id string) (*models.Provider, error) {
	return s.mutate(ctx, id, func(m *mutation) error {
		switch m.p.Status {
		case models.StatusNew:
			if err := m.apply(models.EventIntakeReceived); err != nil {
				return err
			}
		case models.StatusValidationFailed:
			if err := m.apply(models.EventRevalidate); err != nil {
				return err
			}
		case models.StatusValidationInProgress:
		default:
			observability.InvalidTransitions.WithLabelValues(string(m.p.Status), string(models.EventRevalidate)).Inc()
			return &models.InvalidTransitionError{Current: m.p.Status, Event: models.EventRevalidate}
		}
		return s.runValidation(m)
	})
}

// markDispatched sets the given checks pending and moves the provider into PSV.
// From PSVFailed the provider only returns to PSVInProgress once no failed record remains.
func markDispatched(m *mutation, checks []models.CheckType) error {
	for _, c := range checks {
		if err := m.p.PSVStatus.Set(c, models.VerificationStatus{
			Status:      models.CheckPending,
			LastChecked: &m.now,
			Source:      "dispatcher",
		}); err != nil {
			return err
		}
	}
	RecomputePSV(&m.p.PSVStatus)

	switch m.p.Status {
	case models.StatusSubmitted, models.StatusPSVInProgress:
		if err := m.apply(models.EventPSVDispatched); err != nil {
			return err
		}
	case models.StatusPSVFailed:
		if m.p.PSVStatus.OverallStatus == models.PSVIssuesFound {
			return nil
		}
		if err := m.apply(models.EventPSVRetried); err != nil {
			return err
		}
	default:
		observability.InvalidTransitions.WithLabelValues(string(m.p.Status), string(models.EventPSVDispatched)).Inc()
		return &models.InvalidTransitionError{Current: m.p.Status, Event: models.EventPSVDispatched}
	}

	// late results may already have settled every check
	if event, ok := PSVEvent(m.p.PSVStatus.OverallStatus); ok {
		return m.apply(event)
	}
	return nil
}

// DispatchCheck marks one check pending and hands it to the dispatcher. The returned
// channel delivers the outcome once; a timeout or cancellation leaves the record pending.
func (s *CredentialingService) DispatchCheck(ctx context.Context, id string, check models.CheckType) (*models.Provider, <-chan DispatchResult, error) {
	if s.dispatcher == nil {
		return nil, nil, models.ErrDispatcherStopped
	}
	if _, err := models.ParseCheckType(string(check)); err != nil {
		return nil, nil, err
	}

	p, err := s.mutate(ctx, id, func(m *mutation) error {
		if s.dispatcher.InFlight(id, check) {
			return fmt.Errorf("%w: %s for provider %s", models.ErrCheckInFlight, check, id)
		}
		return markDispatched(m, []models.CheckType{check})
	})
	if err != nil {
		return nil, nil, err
	}

	results, err := s.dispatcher.Dispatch(ctx, id, check)
	if err != nil {
		s.logger.Warn("check marked pending but not enqueued",
			zap.String("provider_id", id),
			zap.String("check", string(check)),
			zap.Error(err))
		return p, nil, err
	}
	return p, results, nil
}

// DispatchAll dispatches every check that is not yet verified
func (s *CredentialingService) DispatchAll(ctx context.Context, id string) (*models.Provider, []models.CheckType, error) {
	if s.dispatcher == nil {
		return nil, nil, models.ErrDispatcherStopped
	}

	ctx, span, end := utils.TraceOperation(ctx, "credentialing.dispatch_all", map[string]interface{}{"provider.id": id})
	defer end()

	var checks []models.CheckType
	p, err := s.mutate(ctx, id, func(m *mutation) error {
		checks = checks[:0]
		busy := 0
		for _, c := range models.AllCheckTypes {
			rec, _ := m.p.PSVStatus.Get(c)
			switch {
			case rec.Status == models.CheckVerified:
			case s.dispatcher.InFlight(id, c):
				busy++
			default:
				checks = append(checks, c)
			}
		}
		if len(checks) == 0 && busy > 0 {
			return fmt.Errorf("%w: every open check for provider %s", models.ErrCheckInFlight, id)
		}
		return markDispatched(m, checks)
	})
	if err != nil {
		utils.RecordErrorInSpan(span, err, nil)
		return nil, nil, err
	}
	utils.AddSpanAttribute(span, "checks", len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		c := c
		g.Go(func() error {
			_, err := s.dispatcher.Dispatch(gctx, id, c)
			if errors.Is(err, models.ErrCheckInFlight) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"stage": "enqueue"})
		s.logger.Warn("not every check was enqueued", zap.String("provider_id", id), zap.Error(err))
		return p, checks, err
	}
	return p, checks, nil
}

// CancelCheck stops an in-flight check without touching the provider
func (s *CredentialingService) CancelCheck(ctx context.Context, id string, check models.CheckType) error {
	if _, err := models.ParseCheckType(string(check)); err != nil {
		return err
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	if s.dispatcher == nil || !s.dispatcher.Cancel(id, check) {
		return models.ErrCheckNotInFlight
	}
	return nil
}

// RecordVerification stores a definitive check outcome and advances PSV.
// Outcomes that arrive while the provider is in PSVFailed are stored without a status change.
func (s *CredentialingService) RecordVerification(ctx context.Context, id string, check models.CheckType, record models.VerificationStatus) (*models.Provider, error) {
	if _, err := models.ParseCheckType(string(check)); err != nil {
		return nil, err
	}
	if !record.Status.IsDefinitive() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidCheckStatus, record.Status)
	}

	p, err := s.mutate(ctx, id, func(m *mutation) error {
		if m.p.Status != models.StatusPSVInProgress && m.p.Status != models.StatusPSVFailed {
			observability.InvalidTransitions.WithLabelValues(string(m.p.Status), string(models.EventVerificationResult)).Inc()
			return &models.InvalidTransitionError{Current: m.p.Status, Event: models.EventVerificationResult}
		}

		rec := record
		if rec.LastChecked == nil {
			checked := m.now
			rec.LastChecked = &checked
		}
		if err := ApplyVerification(&m.p.PSVStatus, check, rec); err != nil {
			return err
		}

		if m.p.Status == models.StatusPSVFailed {
			return nil
		}
		if event, ok := PSVEvent(m.p.PSVStatus.OverallStatus); ok {
			return m.apply(event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.auditor.Log(ctx, utils.AuditActionVerify, utils.AuditResourceVerification, id, nil, record,
		map[string]string{"check": string(check)}); err != nil {
		s.logger.Warn("failed to audit verification", zap.String("provider_id", id), zap.Error(err))
	}
	return p, nil
}

// SubmitDecision applies a committee decision
func (s *CredentialingService) SubmitDecision(ctx context.Context, d CommitteeDecision) (*models.Provider, error) {
	if err := ValidateDecision(d); err != nil {
		return nil, err
	}

	var record models.DecisionRecord
	p, err := s.mutate(ctx, d.ProviderID, func(m *mutation) error {
		r, err := ApplyDecision(m.p, d, m.now, utils.GenerateUUID())
		if err != nil {
			if models.IsInvalidTransition(err) {
				observability.InvalidTransitions.WithLabelValues(string(m.p.Status), string(d.Decision.Event())).Inc()
			}
			return err
		}
		// ApplyDecision moved the status itself; record the step for reporting
		m.steps = append(m.steps, step{from: models.StatusCommitteePending, to: m.p.Status, event: d.Decision.Event()})
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.CommitteeDecisions.WithLabelValues(string(d.Decision)).Inc()
	if err := s.auditor.Log(ctx, utils.AuditActionDecision, utils.AuditResourceDecision, p.ID, nil, record,
		map[string]string{"reviewer": record.Reviewer}); err != nil {
		s.logger.Warn("failed to audit decision", zap.String("provider_id", p.ID), zap.Error(err))
	}
	return p, nil
}

// GetProvider reads a provider without locking
func (s *CredentialingService) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	return s.store.Get(ctx, id)
}

// ListProviders reads a filtered page of providers
func (s *CredentialingService) ListProviders(ctx context.Context, filter ProviderFilter) ([]*models.Provider, int64, error) {
	return s.store.List(ctx, filter)
}

// Decisions returns the committee log of a provider
func (s *CredentialingService) Decisions(ctx context.Context, id string) ([]models.DecisionRecord, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.DecisionLog, nil
}

// CommitteeQueue lists providers awaiting a committee decision
func (s *CredentialingService) CommitteeQueue(ctx context.Context, page, perPage int) ([]*models.Provider, int64, error) {
	return s.store.List(ctx, ProviderFilter{Status: models.StatusCommitteePending, Page: page, PerPage: perPage})
}

// DashboardStats projects the store into per-status counts
func (s *CredentialingService) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	providers, _, err := s.store.List(ctx, ProviderFilter{})
	if err != nil {
		return models.DashboardStats{}, err
	}
	return ComputeDashboardStats(providers, s.now()), nil
}

// PSVReport projects the matching providers into a verification report
func (s *CredentialingService) PSVReport(ctx context.Context, filter ProviderFilter) (models.PSVReport, error) {
	filter.Page, filter.PerPage = 0, 0
	providers, _, err := s.store.List(ctx, filter)
	if err != nil {
		return models.PSVReport{}, err
	}
	return ComputePSVReport(providers, s.now()), nil
}

// Ping checks the provider store
func (s *CredentialingService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
