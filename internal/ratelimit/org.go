package ratelimit

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownPlan = errors.New("unknown plan")

// OrgSettings is what the edge needs to know about an organisation.
type OrgSettings struct {
	PlanID             string
	RateLimitPerMinute int
	RetentionDays      int
}

// OrgSettingsProvider resolves an org id to its settings.
type OrgSettingsProvider interface {
	Settings(ctx context.Context, orgID string) (OrgSettings, error)
}

type Plan struct {
	RateLimitPerMinute int
	RetentionDays      int
}

// StaticOrgSettings answers from a config-driven plan table.
type StaticOrgSettings struct {
	defaultPlan string
	plans       map[string]Plan
	members     map[string]string
}

// NewStaticOrgSettings maps orgs listed in members to their plan and every
// other org to defaultPlan.
func NewStaticOrgSettings(defaultPlan string, plans map[string]Plan, members map[string]string) *StaticOrgSettings {
	return &StaticOrgSettings{defaultPlan: defaultPlan, plans: plans, members: members}
}

func (s *StaticOrgSettings) Settings(_ context.Context, orgID string) (OrgSettings, error) {
	planID, ok := s.members[orgID]
	if !ok {
		planID = s.defaultPlan
	}
	plan, ok := s.plans[planID]
	if !ok {
		return OrgSettings{}, fmt.Errorf("org %s: %w %q", orgID, ErrUnknownPlan, planID)
	}
	return OrgSettings{
		PlanID:             planID,
		RateLimitPerMinute: plan.RateLimitPerMinute,
		RetentionDays:      plan.RetentionDays,
	}, nil
}
