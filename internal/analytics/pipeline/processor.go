package pipeline

import (
	"context"
	"fmt"
	"time"

	"go-shortlink/internal/analytics/domain"
	"go-shortlink/internal/analytics/enrichment"
	"go-shortlink/internal/analytics/geo"
	"go-shortlink/internal/webhook"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GeoLookup interface {
	Lookup(ip string) *geo.Location
}

type ClickStore interface {
	Insert(ctx context.Context, fact domain.ClickFact) error
}

// LinkStats is the slice of the link store the processor touches.
type LinkStats interface {
	IncrementClickCount(ctx context.Context, linkID int64) error
	LinkOwner(ctx context.Context, linkID int64) (orgID, shortCode string, err error)
}

// ClickProcessor turns a queued click into a persisted fact.
type ClickProcessor interface {
	Process(ctx context.Context, in domain.ClickInput) error
}

type Processor struct {
	geo     GeoLookup
	clicks  ClickStore
	links   LinkStats
	emitter webhook.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

var _ ClickProcessor = (*Processor)(nil)

func NewProcessor(locator GeoLookup, clicks ClickStore, links LinkStats, emitter webhook.Emitter, logger *zap.Logger) *Processor {
	return &Processor{
		geo:     locator,
		clicks:  clicks,
		links:   links,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// Process enriches and stores one click, bumps the link counter and emits
// click.recorded. Only validation and the insert itself fail the call.
func (p *Processor) Process(ctx context.Context, in domain.ClickInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	in.Normalize(p.now())

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate click id: %w", err)
	}
	fact := domain.ClickFact{
		ID:         id.String(),
		LinkID:     in.LinkID,
		IP:         in.IP,
		Referer:    in.Referer,
		UserAgent:  in.UserAgent,
		Device:     enrichment.Device(in.UserAgent),
		Source:     enrichment.Source(in.Referer),
		OccurredAt: in.OccurredAt,
	}

	// geo lookup sees the full address, storage may not
	if p.geo != nil {
		if loc := p.geo.Lookup(in.IP); loc != nil {
			fact.CountryCode = loc.CountryCode
			fact.CountryName = loc.CountryName
			fact.Region = loc.Region
			fact.City = loc.City
			fact.Latitude = loc.Latitude
			fact.Longitude = loc.Longitude
		}
	}
	if in.IPAnonymization {
		fact.IP = geo.AnonymizeIP(in.IP)
	}

	if err := p.clicks.Insert(ctx, fact); err != nil {
		return fmt.Errorf("persist click: %w", err)
	}

	logger := p.logger.With(zap.Int64("link_id", in.LinkID), zap.String("click_id", fact.ID))
	if err := p.links.IncrementClickCount(ctx, in.LinkID); err != nil {
		logger.Warn("click counter increment failed", zap.Error(err))
	}

	orgID, code := in.OrgID, in.ShortCode
	if orgID == "" || code == "" {
		owner, shortCode, err := p.links.LinkOwner(ctx, in.LinkID)
		if err != nil {
			logger.Warn("click owner lookup failed, skipping notification", zap.Error(err))
			return nil
		}
		if orgID == "" {
			orgID = owner
		}
		if code == "" {
			code = shortCode
		}
	}

	if p.emitter != nil {
		p.emitter.Emit(orgID, webhook.EventClickRecorded, map[string]any{
			"click_id":     fact.ID,
			"link_id":      in.LinkID,
			"short_code":   code,
			"country_code": fact.CountryCode,
			"city":         fact.City,
			"device":       fact.Device,
			"referer":      fact.Referer,
			"occurred_at":  fact.OccurredAt.UTC().Format(time.RFC3339),
		})
	}
	return nil
}
