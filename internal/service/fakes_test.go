package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"propertyleads/internal/model"
)

// memStore is an in-memory stand-in for PostgresRepository
type memStore struct {
	mu         sync.Mutex
	properties []model.Property
	turns      map[string][]model.Turn
	leads      map[string]*model.Lead
	agents     map[int64]*model.Agent
	settings   map[string]model.Setting
	queries    []model.FilterCriteria
	nextTurnID int64

	failQuery  bool
	failAppend bool
	failUpsert bool
}

func newMemStore() *memStore {
	return &memStore{
		turns:    make(map[string][]model.Turn),
		leads:    make(map[string]*model.Lead),
		agents:   make(map[int64]*model.Agent),
		settings: make(map[string]model.Setting),
	}
}

func (s *memStore) QueryProperties(ctx context.Context, f model.FilterCriteria, limit int) ([]model.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, f)
	if s.failQuery {
		return nil, errors.New("catalog down")
	}

	var out []model.Property
	for _, p := range s.properties {
		if f.Area != "" && !strings.Contains(strings.ToLower(p.Location), strings.ToLower(f.Area)) {
			continue
		}
		if f.Type != "" && !strings.Contains(strings.ToLower(p.Type), strings.ToLower(f.Type)) {
			continue
		}
		if max := f.MaxPrice(); max != nil && p.Price > *max {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) DistinctAreas(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var areas []string
	for _, p := range s.properties {
		if p.Location != "" && !seen[p.Location] {
			seen[p.Location] = true
			areas = append(areas, p.Location)
		}
	}
	sort.Strings(areas)
	return areas, nil
}

func (s *memStore) LoadTurns(ctx context.Context, threadID string, limit int) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.turns[threadID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]model.Turn(nil), all...), nil
}

func (s *memStore) AppendTurns(ctx context.Context, threadID string, turns []model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return errors.New("turn store down")
	}
	for _, t := range turns {
		s.nextTurnID++
		t.ID = s.nextTurnID
		t.ThreadID = threadID
		s.turns[threadID] = append(s.turns[threadID], t)
	}
	return nil
}

func copyLead(l *model.Lead) *model.Lead {
	c := *l
	return &c
}

func (s *memStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.leads[id]; ok {
		return copyLead(l), nil
	}
	return nil, nil
}

func (s *memStore) FindLeadByThread(ctx context.Context, threadID string) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.leads {
		if l.ThreadID != nil && *l.ThreadID == threadID {
			return copyLead(l), nil
		}
	}
	return nil, nil
}

func (s *memStore) UpsertLeadByThread(ctx context.Context, lead *model.Lead) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsert {
		return "", false, errors.New("lead store down")
	}
	for _, l := range s.leads {
		if l.ThreadID != nil && lead.ThreadID != nil && *l.ThreadID == *lead.ThreadID {
			keep := func(dst *string, v string) {
				if v != "" {
					*dst = v
				}
			}
			keep(&l.Name, lead.Name)
			keep(&l.Phone, lead.Phone)
			keep(&l.Budget, lead.Budget)
			keep(&l.PropertyInterest, lead.PropertyInterest)
			keep(&l.LeadScore, lead.LeadScore)
			keep(&l.AISummary, lead.AISummary)
			l.Context = lead.Context
			l.Version++
			l.UpdatedAt = time.Now()
			return l.ID, false, nil
		}
	}
	c := copyLead(lead)
	c.Version = 1
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.leads[c.ID] = c
	return c.ID, true, nil
}

func (s *memStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyLead(lead)
	c.Version = 1
	c.CreatedAt = time.Now()
	s.leads[c.ID] = c
	return nil
}

func (s *memStore) UpdateLeadIfVersion(ctx context.Context, lead *model.Lead) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.leads[lead.ID]
	if !ok || stored.Version != lead.Version {
		return false, nil
	}
	stored.Status = lead.Status
	stored.AssignedAgentID = lead.AssignedAgentID
	stored.AssignedAt = lead.AssignedAt
	stored.Version++
	lead.Version++
	return true, nil
}

func (s *memStore) RerouteLead(ctx context.Context, id string, agentID int64, at time.Time) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, nil
	}
	l.AssignedAgentID = &agentID
	l.AssignedAt = &at
	l.Version++
	return copyLead(l), nil
}

func (s *memStore) ClearExpiredBindings(ctx context.Context, cutoff time.Time) ([]model.ExpiredBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cleared []model.ExpiredBinding
	for _, l := range s.leads {
		if l.Status == model.LeadStatusNew && l.AssignedAgentID != nil && l.AssignedAt != nil && l.AssignedAt.Before(cutoff) {
			cleared = append(cleared, model.ExpiredBinding{LeadID: l.ID, AgentID: *l.AssignedAgentID})
			l.ClearBinding()
			l.Version++
		}
	}
	return cleared, nil
}

func (s *memStore) ListAgentLeads(ctx context.Context, agentID int64, status string) ([]model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Lead
	for _, l := range s.leads {
		if !l.BoundTo(agentID) {
			continue
		}
		if status != "" && string(l.Status) != status {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) GetAgent(ctx context.Context, id int64) (*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (s *memStore) GetSettings(ctx context.Context, keys ...string) (map[string]model.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Setting)
	for _, k := range keys {
		if v, ok := s.settings[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *memStore) SetSettings(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.settings[k] = model.Setting{Key: k, Value: v, UpdatedAt: time.Now()}
	}
	return nil
}

func (s *memStore) DeleteSettings(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.settings, k)
	}
	return nil
}

func (s *memStore) leadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.LeadEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e model.LeadEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
