package service

import (
	"context"
	"time"

	"propertyleads/internal/model"
)

// Catalog is the read-only property inventory
type Catalog interface {
	QueryProperties(ctx context.Context, f model.FilterCriteria, limit int) ([]model.Property, error)
	DistinctAreas(ctx context.Context) ([]string, error)
}

// TurnStore persists conversation turns per thread
type TurnStore interface {
	LoadTurns(ctx context.Context, threadID string, limit int) ([]model.Turn, error)
	AppendTurns(ctx context.Context, threadID string, turns []model.Turn) error
}

// LeadStore persists leads and their assignment binding
type LeadStore interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	FindLeadByThread(ctx context.Context, threadID string) (*model.Lead, error)
	UpsertLeadByThread(ctx context.Context, lead *model.Lead) (id string, created bool, err error)
	CreateLead(ctx context.Context, lead *model.Lead) error
	UpdateLeadIfVersion(ctx context.Context, lead *model.Lead) (bool, error)
	RerouteLead(ctx context.Context, id string, agentID int64, at time.Time) (*model.Lead, error)
	ClearExpiredBindings(ctx context.Context, cutoff time.Time) ([]model.ExpiredBinding, error)
	ListAgentLeads(ctx context.Context, agentID int64, status string) ([]model.Lead, error)
}

// AgentDirectory resolves agents owned by the admin subsystem
type AgentDirectory interface {
	GetAgent(ctx context.Context, id int64) (*model.Agent, error)
}

// SettingsStore is the key/value admin settings table
type SettingsStore interface {
	GetSettings(ctx context.Context, keys ...string) (map[string]model.Setting, error)
	SetSettings(ctx context.Context, values map[string]string) error
	DeleteSettings(ctx context.Context, keys ...string) error
}

// EventPublisher receives lead lifecycle events after they are committed
type EventPublisher interface {
	Publish(ctx context.Context, event model.LeadEvent) error
}
