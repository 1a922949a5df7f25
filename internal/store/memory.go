package store

import (
	"context"
	"strings"
	"sync"

	"github.com/iwvelando/mro-estimator/internal/lead"
)

// Memory is a Store backed by maps.
type Memory struct {
	mu           sync.RWMutex
	leads        map[string]lead.Lead
	byEmail      map[string]string
	calculations map[string][]lead.Calculation
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		leads:        make(map[string]lead.Lead),
		byEmail:      make(map[string]string),
		calculations: make(map[string][]lead.Calculation),
	}
}

func (m *Memory) UpsertLead(_ context.Context, l lead.Lead) (lead.Lead, bool, error) {
	key := strings.ToLower(l.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byEmail[key]; ok {
		return m.leads[id], false, nil
	}
	m.leads[l.ID] = l
	m.byEmail[key] = l.ID
	return l, true, nil
}

func (m *Memory) GetLead(_ context.Context, id string) (lead.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.leads[id]
	if !ok {
		return lead.Lead{}, ErrNotFound
	}
	return l, nil
}

func (m *Memory) SetCRMStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[id]
	if !ok {
		return ErrNotFound
	}
	l.CRMStatus = status
	m.leads[id] = l
	return nil
}

func (m *Memory) CreateCalculation(_ context.Context, c lead.Calculation) (lead.Calculation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leads[c.LeadID]; !ok {
		return lead.Calculation{}, ErrNotFound
	}
	m.calculations[c.LeadID] = append(m.calculations[c.LeadID], c)
	return c, nil
}

func (m *Memory) CalculationsByLead(_ context.Context, leadID string) ([]lead.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]lead.Calculation, len(m.calculations[leadID]))
	copy(out, m.calculations[leadID])
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() {}
