// Package sqlstore implements the link store on the authoritative SQL database.
package sqlstore

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"

	"go-shortlink/internal/redirect/domain"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	linksTable    = "links"
	variantsTable = "link_variants"
)

// LinkRepository reads links and their variants and maintains the click counter.
type LinkRepository struct {
	drv *entsql.Driver
}

// NewLinkRepository creates a link repository over an opened driver.
func NewLinkRepository(drv *entsql.Driver) *LinkRepository {
	return &LinkRepository{drv: drv}
}

func (r *LinkRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

// FindByShortCode returns the link with its active variants in stored order.
func (r *LinkRepository) FindByShortCode(ctx context.Context, code string) (*domain.ResolvedLink, error) {
	query, args := r.builder().
		Select(
			"id", "short_code", "org_id", "destination_url", "expires_at", "active",
			"ip_anonymization", "password_hash", "deep_link_url", "ios_fallback_url",
			"android_fallback_url", "deep_link_enabled",
		).
		From(entsql.Table(linksTable)).
		Where(entsql.EQ("short_code", code)).
		Limit(1).
		Query()

	var (
		link               domain.ResolvedLink
		expiresAt          stdsql.NullTime
		passwordHash       stdsql.NullString
		deepLinkURL        stdsql.NullString
		iosFallbackURL     stdsql.NullString
		androidFallbackURL stdsql.NullString
	)
	err := r.drv.DB().QueryRowContext(ctx, query, args...).Scan(
		&link.ID, &link.ShortCode, &link.OrgID, &link.DestinationURL, &expiresAt, &link.Active,
		&link.IPAnonymization, &passwordHash, &deepLinkURL, &iosFallbackURL,
		&androidFallbackURL, &link.DeepLinkEnabled,
	)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("query link: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		link.ExpiresAt = &t
	}
	link.PasswordHash = passwordHash.String
	link.DeepLinkURL = deepLinkURL.String
	link.IOSFallbackURL = iosFallbackURL.String
	link.AndroidFallbackURL = androidFallbackURL.String

	variants, err := r.activeVariants(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	link.Variants = variants
	return &link, nil
}

func (r *LinkRepository) activeVariants(ctx context.Context, linkID int64) ([]domain.Variant, error) {
	query, args := r.builder().
		Select("destination_url", "weight", "active").
		From(entsql.Table(variantsTable)).
		Where(entsql.And(
			entsql.EQ("link_id", linkID),
			entsql.EQ("active", true),
		)).
		OrderBy("position", "id").
		Query()

	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.DestinationURL, &v.Weight, &v.Active); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// LinkOwner returns the org id and short code of a link.
func (r *LinkRepository) LinkOwner(ctx context.Context, linkID int64) (string, string, error) {
	query, args := r.builder().
		Select("org_id", "short_code").
		From(entsql.Table(linksTable)).
		Where(entsql.EQ("id", linkID)).
		Query()

	var orgID, shortCode string
	if err := r.drv.DB().QueryRowContext(ctx, query, args...).Scan(&orgID, &shortCode); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return "", "", domain.ErrLinkNotFound
		}
		return "", "", fmt.Errorf("query link owner: %w", err)
	}
	return orgID, shortCode, nil
}

// IncrementClickCount bumps the aggregate counter as a single statement.
func (r *LinkRepository) IncrementClickCount(ctx context.Context, linkID int64) error {
	query, args := r.builder().
		Update(linksTable).
		Add("click_count", 1).
		Where(entsql.EQ("id", linkID)).
		Query()

	res, err := r.drv.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("increment click count: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrLinkNotFound
	}
	return nil
}

// ClickCount returns the aggregate counter of a link.
func (r *LinkRepository) ClickCount(ctx context.Context, linkID int64) (int64, error) {
	query, args := r.builder().
		Select("click_count").
		From(entsql.Table(linksTable)).
		Where(entsql.EQ("id", linkID)).
		Query()

	var count int64
	if err := r.drv.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return 0, domain.ErrLinkNotFound
		}
		return 0, fmt.Errorf("query click count: %w", err)
	}
	return count, nil
}
