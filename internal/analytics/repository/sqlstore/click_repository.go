// Package sqlstore persists click facts.
package sqlstore

import (
	"cmp"
	"context"
	stdsql "database/sql"
	"fmt"
	"slices"

	"go-shortlink/internal/analytics/domain"

	entsql "entgo.io/ent/dialect/sql"
)

const clicksTable = "clicks"

// ClickRepository appends click facts. Rows are never updated.
type ClickRepository struct {
	drv *entsql.Driver
}

func NewClickRepository(drv *entsql.Driver) *ClickRepository {
	return &ClickRepository{drv: drv}
}

func nullString(s string) stdsql.NullString {
	return stdsql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) stdsql.NullFloat64 {
	if f == nil {
		return stdsql.NullFloat64{}
	}
	return stdsql.NullFloat64{Float64: *f, Valid: true}
}

// Insert writes one click fact.
func (r *ClickRepository) Insert(ctx context.Context, c domain.ClickFact) error {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(clicksTable).
		Columns(
			"id", "link_id", "ip", "referer", "user_agent", "device", "source",
			"country_code", "country_name", "region", "city", "latitude", "longitude", "occurred_at",
		).
		Values(
			c.ID, c.LinkID, nullString(c.IP), nullString(c.Referer), nullString(c.UserAgent),
			nullString(c.Device), nullString(c.Source), nullString(c.CountryCode), nullString(c.CountryName),
			nullString(c.Region), nullString(c.City), nullFloat(c.Latitude), nullFloat(c.Longitude), c.OccurredAt.UTC(),
		).
		Query()

	if _, err := r.drv.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

// CountByLink returns how many click facts a link has.
func (r *ClickRepository) CountByLink(ctx context.Context, linkID int64) (int64, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select(entsql.Count("*")).
		From(entsql.Table(clicksTable)).
		Where(entsql.EQ("link_id", linkID)).
		Query()

	var n int64
	if err := r.drv.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return n, nil
}

// FindByLink returns a link's click facts oldest first.
func (r *ClickRepository) FindByLink(ctx context.Context, linkID int64, limit int) ([]domain.ClickFact, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).
		Select(
			"id", "link_id", "ip", "referer", "user_agent", "device", "source",
			"country_code", "country_name", "region", "city", "latitude", "longitude", "occurred_at",
		).
		From(entsql.Table(clicksTable)).
		Where(entsql.EQ("link_id", linkID)).
		OrderBy("occurred_at", "id").
		Limit(limit).
		Query()

	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}
	defer rows.Close()

	var facts []domain.ClickFact
	for rows.Next() {
		var (
			c                                   domain.ClickFact
			ip, referer, userAgent, device, src stdsql.NullString
			countryCode, countryName            stdsql.NullString
			region, city                        stdsql.NullString
			lat, lon                            stdsql.NullFloat64
		)
		if err := rows.Scan(
			&c.ID, &c.LinkID, &ip, &referer, &userAgent, &device, &src,
			&countryCode, &countryName, &region, &city, &lat, &lon, &c.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan click: %w", err)
		}
		c.IP, c.Referer, c.UserAgent = ip.String, referer.String, userAgent.String
		c.Device, c.Source = device.String, src.String
		c.CountryCode, c.CountryName = countryCode.String, countryName.String
		c.Region, c.City = region.String, city.String
		if lat.Valid {
			c.Latitude = &lat.Float64
		}
		if lon.Valid {
			c.Longitude = &lon.Float64
		}
		facts = append(facts, c)
	}
	return facts, rows.Err()
}

// CountBy groups a link's clicks by dim, largest group first and ties by
// value. Clicks with no value for dim are counted under domain.UnknownValue.
func (r *ClickRepository) CountBy(ctx context.Context, linkID int64, dim domain.Dimension) ([]domain.GroupCount, error) {
	switch dim {
	case domain.DimensionCountry, domain.DimensionDevice, domain.DimensionSource:
	default:
		return nil, fmt.Errorf("unsupported click dimension %q", dim)
	}
	column := string(dim)

	query, args := entsql.Dialect(r.drv.Dialect()).
		Select(column, entsql.As(entsql.Count("*"), "n")).
		From(entsql.Table(clicksTable)).
		Where(entsql.EQ("link_id", linkID)).
		GroupBy(column).
		Query()

	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group clicks by %s: %w", column, err)
	}
	defer rows.Close()

	groups := make(map[string]int64)
	var order []string
	for rows.Next() {
		var (
			value stdsql.NullString
			n     int64
		)
		if err := rows.Scan(&value, &n); err != nil {
			return nil, fmt.Errorf("scan click group: %w", err)
		}
		key := value.String
		if key == "" {
			key = domain.UnknownValue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.GroupCount, 0, len(order))
	for _, key := range order {
		out = append(out, domain.GroupCount{Value: key, Count: groups[key]})
	}
	// dialects disagree on where NULL sorts, so order here
	slices.SortFunc(out, func(a, b domain.GroupCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out, nil
}
