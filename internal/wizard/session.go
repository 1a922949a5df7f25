// Package wizard sequences the estimator steps for one user: concern
// selection, profile entry, gated results and full results. It holds no
// business rules of its own; validation, estimation and lead capture are
// delegated.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iwvelando/mro-estimator/internal/capture"
	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/internal/lead"
	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/pkg/validation"
	"go.uber.org/zap"
)

// State is a wizard step.
type State string

const (
	SelectingConcerns   State = "selecting_concerns"
	EnteringProfile     State = "entering_profile"
	ViewingGatedResults State = "viewing_gated_results"
	ViewingFullResults  State = "viewing_full_results"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the
	// current state.
	ErrInvalidTransition = errors.New("invalid wizard transition")
	// ErrNoConcerns blocks leaving concern selection with nothing selected.
	ErrNoConcerns = errors.New("select at least one concern to continue")
)

// LeadSubmitter records a captured lead.
type LeadSubmitter interface {
	Submit(ctx context.Context, sub capture.Submission) (capture.Receipt, error)
}

// Teaser is what the gated results step may show.
type Teaser struct {
	GrandTotal float64  `json:"grandTotal"`
	Concerns   []string `json:"concerns"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID         string              `json:"id"`
	State      State               `json:"state"`
	Concerns   []string            `json:"concerns"`
	Profile    profile.Profile     `json:"profile"`
	Validation *validation.Outcome `json:"validation,omitempty"`
	FocusField string              `json:"focusField,omitempty"`
	Teaser     *Teaser             `json:"teaser,omitempty"`
	Result     *estimate.Result    `json:"result,omitempty"`
	Lead       *capture.Receipt    `json:"lead,omitempty"`
}

// Session is one user's progress through the wizard. All methods are safe
// for concurrent use.
type Session struct {
	mu sync.Mutex

	id        string
	state     State
	selection profile.Selection
	profile   profile.Profile
	outcome   *validation.Outcome
	result    *estimate.Result
	receipt   *capture.Receipt

	submitter  LeadSubmitter
	submitting bool
	logger     *zap.Logger
	now        func() time.Time

	// lastUsed is read by the manager's sweep without taking mu.
	lastUsed atomic.Int64
}

// NewSession returns a session in SelectingConcerns with nothing selected.
func NewSession(id string, submitter LeadSubmitter, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:        id,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
	}
	s.clear()
	s.touch()
	return s
}

func (s *Session) clear() {
	s.state = SelectingConcerns
	s.selection = profile.NewSelection()
	s.profile = profile.Default()
	s.outcome = nil
	s.result = nil
	s.receipt = nil
}

func (s *Session) touch() {
	s.lastUsed.Store(s.now().UnixNano())
}

func (s *Session) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.state)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Toggle adds or removes a concern. Any held result is dropped; the next
// submit computes a fresh one.
func (s *Session) Toggle(c profile.Concern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != SelectingConcerns {
		return s.transitionError("toggle concerns")
	}
	s.selection.Toggle(c)
	s.result = nil
	return nil
}

// Next moves from concern selection to profile entry.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != SelectingConcerns {
		return s.transitionError("advance")
	}
	if s.selection.Empty() {
		return ErrNoConcerns
	}
	s.state = EnteringProfile
	return nil
}

// Back returns from profile entry to concern selection, keeping the profile.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != EnteringProfile {
		return s.transitionError("go back")
	}
	s.state = SelectingConcerns
	return nil
}

// Submit validates p against the current selection. On success the result
// is computed and the session moves to ViewingGatedResults; otherwise the
// session stays in EnteringProfile holding p and the outcome.
func (s *Session) Submit(p profile.Profile) (validation.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != EnteringProfile {
		return validation.Outcome{}, s.transitionError("submit a profile")
	}

	s.profile = p.Resolved()
	outcome := validation.Validate(s.profile, s.selection)
	s.outcome = &outcome
	if !outcome.Valid() {
		return outcome, nil
	}

	s.recompute()
	s.state = ViewingGatedResults
	return outcome, nil
}

// ConfirmFallback accepts the proposed default mix after a NeedsConfirmation
// outcome and resubmits.
func (s *Session) ConfirmFallback() (validation.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != EnteringProfile || s.outcome == nil || s.outcome.Status != validation.StatusNeedsConfirmation {
		return validation.Outcome{}, s.transitionError("confirm the default mix")
	}

	s.profile = validation.ApplyFallback(s.profile)
	outcome := validation.Validate(s.profile, s.selection)
	s.outcome = &outcome
	if !outcome.Valid() {
		return outcome, nil
	}

	s.recompute()
	s.state = ViewingGatedResults
	return outcome, nil
}

// SubmitLead validates the contact and hands it to the lead submitter with
// the current calculation. Once the contact is valid the gate unlocks
// whatever the submitter returns; submitter failures are only logged. The
// session is not locked while the submitter runs.
func (s *Session) SubmitLead(ctx context.Context, contact lead.Contact) error {
	s.mu.Lock()
	s.touch()

	if s.state != ViewingGatedResults || s.result == nil || s.submitting {
		defer s.mu.Unlock()
		return s.transitionError("submit contact details")
	}

	contact = contact.Normalize()
	if err := contact.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}

	if s.submitter == nil {
		s.logger.Warn("no lead submitter configured, unlocking results",
			zap.String("op", "wizard.SubmitLead"),
			zap.String("session", s.id),
		)
		s.state = ViewingFullResults
		s.mu.Unlock()
		return nil
	}

	result := s.result
	sub := capture.Submission{
		Lead:        contact,
		Calculation: estimate.Flatten(s.profile, *result),
	}
	s.submitting = true
	s.mu.Unlock()

	receipt, err := s.submitter.Submit(ctx, sub)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	s.touch()

	if err != nil {
		s.logger.Error("lead capture failed, unlocking results anyway",
			zap.String("op", "wizard.SubmitLead"),
			zap.String("session", s.id),
			zap.Error(err),
		)
	}
	if s.state != ViewingGatedResults || s.result != result {
		return s.transitionError("unlock results")
	}
	if err == nil {
		s.receipt = &receipt
	}
	s.state = ViewingFullResults
	return nil
}

// AdjustInputs returns from either results step to profile entry.
func (s *Session) AdjustInputs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != ViewingGatedResults && s.state != ViewingFullResults {
		return s.transitionError("adjust inputs")
	}
	s.state = EnteringProfile
	s.outcome = nil
	return nil
}

// Reset clears everything and returns to concern selection.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.clear()
}

func (s *Session) recompute() {
	r := estimate.Estimate(s.profile, s.selection)
	s.result = &r
}

// Snapshot returns the session as the current step may display it. Full
// figures are only included in ViewingFullResults.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:       s.id,
		State:    s.state,
		Concerns: s.selection.Strings(),
		Profile:  s.profile,
	}

	if s.outcome != nil {
		outcome := *s.outcome
		snap.Validation = &outcome
		snap.FocusField = outcome.FirstErrorField()
	}

	switch s.state {
	case ViewingGatedResults:
		if s.result != nil {
			snap.Teaser = &Teaser{GrandTotal: s.result.GrandTotal, Concerns: s.result.Concerns}
		}
	case ViewingFullResults:
		if s.result != nil {
			result := *s.result
			snap.Result = &result
		}
		if s.receipt != nil {
			receipt := *s.receipt
			snap.Lead = &receipt
		}
	}

	return snap
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}
