// Package store keeps the active offer, uploaded leads and scoring results in
// process memory.
package store

import (
	"sync"

	"github.com/spigell/leadscore/internal/leads"
	"github.com/spigell/leadscore/internal/scoring"
)

// Memory is safe for concurrent use. Slices it returns are copies; the
// records they point to must be treated as read-only.
type Memory struct {
	mu sync.RWMutex

	offer     *leads.Offer
	leads     map[string]*leads.Lead
	leadOrder []string
	uploads   map[string][]string

	results     map[string]*scoring.ScoringResult
	resultOrder []string
}

var _ scoring.Store = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.offer = nil
	m.leads = make(map[string]*leads.Lead)
	m.leadOrder = nil
	m.uploads = make(map[string][]string)
	m.results = make(map[string]*scoring.ScoringResult)
	m.resultOrder = nil
}

// SetOffer replaces the active offer.
func (m *Memory) SetOffer(offer *leads.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offer = offer
}

func (m *Memory) Offer() *leads.Offer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offer
}

// AddLeads stores a batch of leads under uploadID.
func (m *Memory) AddLeads(batch []*leads.Lead, uploadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(batch))
	for _, lead := range batch {
		if lead == nil {
			continue
		}
		if _, exists := m.leads[lead.ID]; !exists {
			m.leadOrder = append(m.leadOrder, lead.ID)
		}
		m.leads[lead.ID] = lead
		ids = append(ids, lead.ID)
	}
	m.uploads[uploadID] = ids
}

// Leads returns the leads of uploadID, or every lead in insertion order when
// uploadID is empty. Unknown uploads yield no leads.
func (m *Memory) Leads(uploadID string) []*leads.Lead {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.leadOrder
	if uploadID != "" {
		ids = m.uploads[uploadID]
	}

	out := make([]*leads.Lead, 0, len(ids))
	for _, id := range ids {
		if lead, ok := m.leads[id]; ok {
			out = append(out, lead)
		}
	}
	return out
}

// Lead looks a lead up by id.
func (m *Memory) Lead(id string) (*leads.Lead, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[id]
	return lead, ok
}

// LeadIDs returns the lead ids of an upload batch.
func (m *Memory) LeadIDs(uploadID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.uploads[uploadID]...)
}

// AddResults stores results keyed by their id.
func (m *Memory) AddResults(results []*scoring.ScoringResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, result := range results {
		if result == nil {
			continue
		}
		if _, exists := m.results[result.ID]; !exists {
			m.resultOrder = append(m.resultOrder, result.ID)
		}
		m.results[result.ID] = result
	}
}

// Results returns every stored result in insertion order.
func (m *Memory) Results() []*scoring.ScoringResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*scoring.ScoringResult, 0, len(m.resultOrder))
	for _, id := range m.resultOrder {
		out = append(out, m.results[id])
	}
	return out
}

// Clear drops all stored data.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}
