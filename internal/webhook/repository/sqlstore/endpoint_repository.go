// Package sqlstore reads and registers webhook endpoints.
package sqlstore

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"strings"

	"go-shortlink/internal/webhook"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const endpointsTable = "webhook_endpoints"

type EndpointRepository struct {
	drv *entsql.Driver
}

var _ webhook.EndpointStore = (*EndpointRepository)(nil)

func NewEndpointRepository(drv *entsql.Driver) *EndpointRepository {
	return &EndpointRepository{drv: drv}
}

// Create registers an endpoint and returns it with its generated ID.
func (r *EndpointRepository) Create(ctx context.Context, ep webhook.Endpoint) (webhook.Endpoint, error) {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	if len(ep.Events) == 0 {
		ep.Events = []string{"*"}
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(endpointsTable).
		Columns("id", "org_id", "url", "secret", "events", "enabled").
		Values(ep.ID, ep.OrgID, ep.URL, stdsql.NullString{String: ep.Secret, Valid: ep.Secret != ""}, joinEvents(ep.Events), ep.Enabled).
		Query()

	if _, err := r.drv.DB().ExecContext(ctx, query, args...); err != nil {
		return webhook.Endpoint{}, fmt.Errorf("insert webhook endpoint: %w", err)
	}
	return ep, nil
}

// ListSubscribed returns the org's enabled endpoints whose event list
// covers eventType.
func (r *EndpointRepository) ListSubscribed(ctx context.Context, orgID string, eventType webhook.EventType) ([]webhook.Endpoint, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select("id", "org_id", "url", "secret", "events", "enabled").
		From(entsql.Table(endpointsTable)).
		Where(entsql.And(
			entsql.EQ("org_id", orgID),
			entsql.EQ("enabled", true),
		)).
		OrderBy("created_at", "id").
		Query()

	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query webhook endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []webhook.Endpoint
	for rows.Next() {
		var (
			ep     webhook.Endpoint
			secret stdsql.NullString
			events string
		)
		if err := rows.Scan(&ep.ID, &ep.OrgID, &ep.URL, &secret, &events, &ep.Enabled); err != nil {
			return nil, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		ep.Secret = secret.String
		ep.Events = splitEvents(events)
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lo.Filter(endpoints, func(ep webhook.Endpoint, _ int) bool {
		return ep.Subscribed(eventType)
	}), nil
}

func joinEvents(events []string) string {
	return strings.Join(lo.Uniq(lo.Map(events, func(e string, _ int) string {
		return strings.TrimSpace(e)
	})), ",")
}

func splitEvents(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(e string, _ int) string {
		return strings.TrimSpace(e)
	}))
}
