package sqlstore

import (
	"context"
	"testing"
	"time"

	"go-shortlink/internal/redirect/domain"
	"go-shortlink/internal/store/storetest"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertLink(t *testing.T, drv *entsql.Driver, code string, expiresAt any, password any) int64 {
	t.Helper()
	query, args := entsql.Dialect(drv.Dialect()).
		Insert(linksTable).
		Columns("short_code", "org_id", "destination_url", "expires_at", "password_hash", "deep_link_url", "deep_link_enabled").
		Values(code, "org_1", "https://example.com/"+code, expiresAt, password, "app://open", true).
		Query()
	res, err := drv.DB().ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertVariant(t *testing.T, drv *entsql.Driver, linkID int64, url string, weight int, active bool, position int) {
	t.Helper()
	query, args := entsql.Dialect(drv.Dialect()).
		Insert(variantsTable).
		Columns("link_id", "destination_url", "weight", "active", "position").
		Values(linkID, url, weight, active, position).
		Query()
	_, err := drv.DB().ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

func TestLinkRepository_FindByShortCode_Exists_ReturnsLinkWithActiveVariantsInOrder(t *testing.T) {
	drv := storetest.NewSQLite(t)
	repo := NewLinkRepository(drv)
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	id := insertLink(t, drv, "abc123", expires, "$2a$10$hash")
	insertVariant(t, drv, id, "https://b.example.com", 30, true, 2)
	insertVariant(t, drv, id, "https://a.example.com", 70, true, 1)
	insertVariant(t, drv, id, "https://off.example.com", 50, false, 0)

	link, err := repo.FindByShortCode(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, id, link.ID)
	assert.Equal(t, "org_1", link.OrgID)
	assert.Equal(t, "https://example.com/abc123", link.DestinationURL)
	assert.True(t, link.Active)
	assert.True(t, link.DeepLinkEnabled)
	assert.Equal(t, "app://open", link.DeepLinkURL)
	assert.Equal(t, "$2a$10$hash", link.PasswordHash)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, expires.Equal(*link.ExpiresAt))
	require.Len(t, link.Variants, 2)
	assert.Equal(t, "https://a.example.com", link.Variants[0].DestinationURL)
	assert.Equal(t, 70, link.Variants[0].Weight)
	assert.Equal(t, "https://b.example.com", link.Variants[1].DestinationURL)
}

func TestLinkRepository_FindByShortCode_NullableColumns_AreEmpty(t *testing.T) {
	drv := storetest.NewSQLite(t)
	repo := NewLinkRepository(drv)
	insertLink(t, drv, "plain", nil, nil)

	link, err := repo.FindByShortCode(context.Background(), "plain")

	require.NoError(t, err)
	assert.Nil(t, link.ExpiresAt)
	assert.Empty(t, link.PasswordHash)
	assert.Empty(t, link.Variants)
}

func TestLinkRepository_FindByShortCode_Missing_ReturnsErrLinkNotFound(t *testing.T) {
	repo := NewLinkRepository(storetest.NewSQLite(t))

	_, err := repo.FindByShortCode(context.Background(), "nope")

	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestLinkRepository_IncrementClickCount_AddsOnePerCall(t *testing.T) {
	drv := storetest.NewSQLite(t)
	repo := NewLinkRepository(drv)
	id := insertLink(t, drv, "count", nil, nil)
	ctx := context.Background()

	require.NoError(t, repo.IncrementClickCount(ctx, id))
	require.NoError(t, repo.IncrementClickCount(ctx, id))

	count, err := repo.ClickCount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.ErrorIs(t, repo.IncrementClickCount(ctx, id+100), domain.ErrLinkNotFound)
}

func TestLinkRepository_LinkOwner_ReturnsOrgAndCode(t *testing.T) {
	drv := storetest.NewSQLite(t)
	repo := NewLinkRepository(drv)
	id := insertLink(t, drv, "owned", nil, nil)

	orgID, code, err := repo.LinkOwner(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "org_1", orgID)
	assert.Equal(t, "owned", code)

	_, _, err = repo.LinkOwner(context.Background(), id+1)
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}
