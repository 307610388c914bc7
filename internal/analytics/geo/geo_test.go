package geo_test

import (
	"os"
	"path/filepath"
	"testing"

	"go-shortlink/internal/analytics/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewResolver_NoPath_NeverResolves(t *testing.T) {
	r, err := geo.NewResolver("", zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	assert.Nil(t, r.Lookup("8.8.8.8"))
}

func TestNewResolver_MissingFile_DegradesToNoLookup(t *testing.T) {
	r, err := geo.NewResolver(filepath.Join(t.TempDir(), "GeoLite2-City.mmdb"), zap.NewNop())
	require.NoError(t, err)

	assert.Nil(t, r.Lookup("1.1.1.1"))
	assert.NoError(t, r.Close())
}

func TestNewResolver_CorruptFile_ReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("not a maxmind database"), 0o600))

	_, err := geo.NewResolver(path, zap.NewNop())

	assert.Error(t, err)
}

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"203.0.113.77", "203.0.113.0"},
		{"::ffff:198.51.100.9", "198.51.100.0"},
		{"2001:db8:abcd:1234:5678::1", "2001:db8:abcd::"},
		{"garbage", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, geo.AnonymizeIP(tt.in))
		})
	}
}
