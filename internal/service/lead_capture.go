package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"propertyleads/internal/model"
	"propertyleads/internal/utils"
)

// Column bounds of the leads table, in characters
const (
	maxNameLen     = 100
	maxPhoneLen    = 30
	maxBudgetLen   = 50
	maxInterestLen = 255
	maxScoreLen    = 50
	maxSummaryLen  = 300
	maxContextLen  = 500
	minPhoneDigits = 7

	defaultFormName = "Web Visitor"
)

var (
	phoneRe = regexp.MustCompile(`(\+92[\s-]?3\d{2}[\s-]?\d{7}|\b03\d{2}[\s-]?\d{7}|\b\d{4}[\s-]\d{7})\b`)
	nameRe  = regexp.MustCompile(`(?i)\b(?:my name is|mera naam|i am|i'm|naam)\s*(?::|is|hai)?\s+([a-z]+(?: [a-z]+){0,2}?)(?:[.,!?;\n]|\s+(?:hai|hoon|here|and|aur)\b|$)`)
)

// LeadCapture turns qualifying lead candidates into stored leads
type LeadCapture struct {
	leads  LeadStore
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewLeadCapture creates a lead capture service
func NewLeadCapture(leads LeadStore, events EventPublisher, logger *slog.Logger) *LeadCapture {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadCapture{
		leads:  leads,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Capture creates or merges the lead for threadID. A candidate without a name and a
// usable phone is ignored and yields an empty id.
func (c *LeadCapture) Capture(ctx context.Context, candidate *model.LeadCandidate, threadID, summary string, turns []model.Turn) (string, error) {
	if !candidate.Qualifies() || !validPhone(candidate.Phone) {
		return "", nil
	}
	if threadID == "" {
		return "", fmt.Errorf("%w: thread id is required", ErrInvalidInput)
	}

	thread := threadID
	lead := &model.Lead{
		ID:               uuid.NewString(),
		Name:             utils.TruncateRunes(strings.TrimSpace(candidate.Name), maxNameLen),
		Phone:            utils.TruncateRunes(strings.TrimSpace(candidate.Phone), maxPhoneLen),
		Budget:           utils.TruncateRunes(strings.TrimSpace(candidate.Budget), maxBudgetLen),
		PropertyInterest: utils.TruncateRunes(strings.TrimSpace(candidate.Interest), maxInterestLen),
		LeadScore:        utils.TruncateRunes(strings.TrimSpace(candidate.LeadScore), maxScoreLen),
		AISummary:        utils.TruncateRunes(strings.TrimSpace(summary), maxSummaryLen),
		Context:          renderContext(turns),
		Source:           model.LeadSourceChat,
		ThreadID:         &thread,
		Status:           model.LeadStatusNew,
	}

	id, created, err := c.leads.UpsertLeadByThread(ctx, lead)
	if err != nil {
		return "", err
	}

	eventType := model.EventLeadUpdated
	if created {
		eventType = model.EventLeadCaptured
		c.logger.Info("lead captured", "lead_id", id, "thread_id", threadID)
	}
	emit(ctx, c.events, c.logger, eventType, id, nil, model.LeadStatusNew, c.now())

	return id, nil
}

// CreatePublicLead stores a lead submitted through the public contact form
func (c *LeadCapture) CreatePublicLead(ctx context.Context, req model.PublicLeadRequest) (*model.Lead, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultFormName
	}

	now := c.now()
	lead := &model.Lead{
		ID:        uuid.NewString(),
		Name:      utils.TruncateRunes(name, maxNameLen),
		Phone:     utils.TruncateRunes(phone, maxPhoneLen),
		Context:   utils.TruncateRunes(strings.TrimSpace(req.Context), maxContextLen),
		Source:    model.LeadSourceForm,
		Status:    model.LeadStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.leads.CreateLead(ctx, lead); err != nil {
		return nil, err
	}

	c.logger.Info("lead submitted", "lead_id", lead.ID, "source", lead.Source)
	emit(ctx, c.events, c.logger, model.EventLeadCaptured, lead.ID, nil, lead.Status, now)
	return lead, nil
}

// FallbackCandidate scans the user's own messages for a phone number and a
// self-introduction. Both must be present; the most recent mention wins.
func FallbackCandidate(turns []model.Turn) *model.LeadCandidate {
	var name, phone string
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != model.RoleUser {
			continue
		}
		text := turns[i].Content
		if phone == "" {
			if m := phoneRe.FindStringSubmatch(text); len(m) > 1 {
				phone = strings.TrimSpace(m[1])
			}
		}
		if name == "" {
			if m := nameRe.FindStringSubmatch(text); len(m) > 1 {
				name = strings.TrimSpace(m[1])
			}
		}
		if name != "" && phone != "" {
			return &model.LeadCandidate{Name: name, Phone: phone}
		}
	}
	return nil
}

// validPhone requires a minimum number of digits in otherwise free text
func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits
}

// renderContext snapshots the conversation as "role: content" lines
func renderContext(turns []model.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return utils.TruncateRunes(b.String(), maxContextLen)
}
