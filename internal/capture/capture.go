// Package capture records a lead and its calculation and forwards both to
// the CRM.
//
// Identifiers are generated before anything is written. When the store
// accepts the lead, the CRM sync runs in the background and only updates the
// lead's crmStatus. When the store fails, the CRM sync runs inline and the
// submission succeeds only if the CRM accepted it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/mro-estimator/internal/crm"
	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/internal/lead"
	"github.com/iwvelando/mro-estimator/internal/store"
	"github.com/iwvelando/mro-estimator/pkg/validation"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the lead was neither stored nor forwarded.
var ErrUnavailable = errors.New("lead could not be recorded")

// Submission is the body of a lead capture request.
type Submission struct {
	Lead        lead.Contact     `json:"lead"`
	Calculation estimate.Payload `json:"calculation"`
}

// Receipt describes an accepted submission.
type Receipt struct {
	Success       bool   `json:"success"`
	LeadID        string `json:"leadId"`
	CalculationID string `json:"calculationId"`
	Persisted     bool   `json:"persisted"`
	CRMStatus     string `json:"crmStatus"`
}

// CalculationError rejects a submitted calculation. Outcome is set when the
// inputs failed profile validation.
type CalculationError struct {
	Err     error
	Outcome *validation.Outcome
}

func (e *CalculationError) Error() string {
	if e.Outcome != nil && len(e.Outcome.Errors) > 0 {
		field := e.Outcome.FirstErrorField()
		return fmt.Sprintf("invalid calculation: %s: %s", field, e.Outcome.Errors[field])
	}
	if e.Outcome != nil {
		return "invalid calculation: inventory mix does not sum to 100%"
	}
	return "invalid calculation: " + e.Err.Error()
}

func (e *CalculationError) Unwrap() error { return e.Err }

// Record is a stored lead with its calculations.
type Record struct {
	Lead         lead.Lead          `json:"lead"`
	Calculations []lead.Calculation `json:"calculations"`
}

// Service captures leads.
type Service struct {
	store   store.Store
	syncer  crm.Syncer
	logger  *zap.Logger
	timeout time.Duration

	wg    sync.WaitGroup
	now   func() time.Time
	newID func() string
}

// New builds a Service. A nil syncer disables CRM forwarding.
func New(st store.Store, syncer crm.Syncer, logger *zap.Logger, timeout time.Duration) *Service {
	if syncer == nil {
		syncer = crm.Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   st,
		syncer:  syncer,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Submit validates and records sub.
func (s *Service) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	contact := sub.Lead.Normalize()
	if err := contact.Validate(); err != nil {
		return Receipt{}, err
	}

	payload, err := s.checkCalculation(sub.Calculation)
	if err != nil {
		return Receipt{}, err
	}

	now := s.now().UTC()
	candidate := lead.Lead{
		ID:          s.newID(),
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		Email:       contact.Email,
		Company:     contact.Company,
		JobFunction: contact.JobFunction,
		CRMStatus:   lead.CRMPending,
		CreatedAt:   now,
	}
	calc := lead.Calculation{
		ID:        s.newID(),
		Payload:   payload,
		CreatedAt: now,
	}

	stored, storeErr := s.persist(ctx, candidate, &calc)
	if storeErr != nil {
		s.logger.Error("failed to store lead, forwarding to crm directly",
			zap.String("op", "capture.Submit"),
			zap.String("leadId", candidate.ID),
			zap.Error(storeErr),
		)

		syncCtx, cancel := s.syncContext(ctx)
		defer cancel()
		_, syncErr := s.syncer.Sync(syncCtx, contact, payload)

		// The lead row may have been written before the calculation failed.
		leadID := candidate.ID
		if stored.ID != "" {
			leadID = stored.ID
			s.recordStatus(ctx, leadID, syncStatus(syncErr), "capture.Submit")
		}

		if syncErr != nil {
			s.logger.Error("crm fallback failed, lead lost",
				zap.String("op", "capture.Submit"),
				zap.String("leadId", leadID),
				zap.Error(syncErr),
			)
			return Receipt{}, fmt.Errorf("%w: store: %v; crm: %v", ErrUnavailable, storeErr, syncErr)
		}
		return Receipt{
			Success:       true,
			LeadID:        leadID,
			CalculationID: calc.ID,
			CRMStatus:     lead.CRMSynced,
		}, nil
	}

	s.wg.Add(1)
	go s.forward(stored.ID, contact, payload)

	return Receipt{
		Success:       true,
		LeadID:        stored.ID,
		CalculationID: calc.ID,
		Persisted:     true,
		CRMStatus:     lead.CRMPending,
	}, nil
}

func (s *Service) checkCalculation(submitted estimate.Payload) (estimate.Payload, error) {
	payload, drift, err := submitted.Recompute()
	if err != nil {
		return estimate.Payload{}, &CalculationError{Err: err}
	}
	if drift {
		s.logger.Warn("submitted figures differ from recomputed figures, storing recomputed values",
			zap.String("op", "capture.Submit"),
			zap.Float64("submittedTotal", submitted.GrandTotal),
			zap.Float64("recomputedTotal", payload.GrandTotal),
		)
	}

	sel, err := payload.Selection()
	if err != nil {
		return estimate.Payload{}, &CalculationError{Err: err}
	}
	if sel.Empty() {
		return estimate.Payload{}, &CalculationError{Err: errors.New("no concerns selected")}
	}

	if outcome := validation.Validate(payload.Profile(), sel); !outcome.Valid() {
		return estimate.Payload{}, &CalculationError{Err: errors.New(string(outcome.Status)), Outcome: &outcome}
	}
	return payload, nil
}

// persist stores the lead and its calculation. On error the returned lead is
// set only if the lead itself was stored.
func (s *Service) persist(ctx context.Context, candidate lead.Lead, calc *lead.Calculation) (lead.Lead, error) {
	stored, created, err := s.store.UpsertLead(ctx, candidate)
	if err != nil {
		return lead.Lead{}, fmt.Errorf("upsert lead: %w", err)
	}
	if !created {
		s.logger.Debug("reusing existing lead",
			zap.String("op", "capture.Submit"),
			zap.String("leadId", stored.ID),
		)
	}

	calc.LeadID = stored.ID
	if _, err := s.store.CreateCalculation(ctx, *calc); err != nil {
		return stored, fmt.Errorf("create calculation: %w", err)
	}
	return stored, nil
}

func (s *Service) forward(leadID string, contact lead.Contact, payload estimate.Payload) {
	defer s.wg.Done()

	ctx, cancel := s.syncContext(context.Background())
	defer cancel()

	_, err := s.syncer.Sync(ctx, contact, payload)
	if err != nil && !errors.Is(err, crm.ErrDisabled) {
		s.logger.Error("crm sync failed",
			zap.String("op", "capture.forward"),
			zap.String("leadId", leadID),
			zap.Error(err),
		)
	}
	s.recordStatus(ctx, leadID, syncStatus(err), "capture.forward")
}

func syncStatus(err error) string {
	switch {
	case err == nil:
		return lead.CRMSynced
	case errors.Is(err, crm.ErrDisabled):
		return lead.CRMSkipped
	default:
		return lead.CRMFailed
	}
}

func (s *Service) recordStatus(ctx context.Context, leadID, status, op string) {
	if err := s.store.SetCRMStatus(ctx, leadID, status); err != nil {
		s.logger.Warn("failed to record crm status",
			zap.String("op", op),
			zap.String("leadId", leadID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (s *Service) syncContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

// Lookup returns the stored lead and its calculations.
func (s *Service) Lookup(ctx context.Context, leadID string) (Record, error) {
	l, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return Record{}, err
	}
	calcs, err := s.store.CalculationsByLead(ctx, leadID)
	if err != nil {
		return Record{}, fmt.Errorf("load calculations: %w", err)
	}
	return Record{Lead: l, Calculations: calcs}, nil
}

// Wait blocks until background CRM syncs finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
