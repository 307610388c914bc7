package usecase

import (
	"strings"
	"testing"
	"time"

	"go-shortlink/internal/redirect/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSigner_IssueFormatAndVerify(t *testing.T) {
	s, err := NewSessionSigner("k", "sl", 24*time.Hour)
	require.NoError(t, err)
	now := time.UnixMilli(1_700_000_000_000)

	proof := s.Issue(9, now)

	assert.Equal(t, "sl_pw_9", proof.Name)
	exp, sig, ok := strings.Cut(proof.Value, ".")
	require.True(t, ok)
	assert.Equal(t, "1700086400000", exp)
	assert.NotContains(t, sig, "=")
	assert.True(t, s.Verify(9, proof.Value, now))
	assert.False(t, s.Verify(10, proof.Value, now))
	assert.False(t, s.Verify(9, proof.Value, now.Add(24*time.Hour)))
	assert.False(t, s.Verify(9, "garbage", now))
	assert.False(t, s.Verify(9, "123.", now))
}

func TestNewSessionSigner_EmptySecret_GeneratesRandomKey(t *testing.T) {
	a, err := NewSessionSigner("", "", 0)
	require.NoError(t, err)
	b, err := NewSessionSigner("", "", 0)
	require.NoError(t, err)
	now := time.Now()

	proof := a.Issue(1, now)

	assert.True(t, a.Verify(1, proof.Value, now))
	assert.False(t, b.Verify(1, proof.Value, now))
	assert.Equal(t, 86400, proof.MaxAge)
}

func TestPickDestination_IgnoresNonPositiveWeights(t *testing.T) {
	variants := []domain.Variant{{DestinationURL: "zero", Weight: 0, Active: true}}

	assert.Equal(t, "base", pickDestination("base", variants, func(int) int { return 0 }))
	assert.Equal(t, "base", pickDestination("base", nil, func(int) int { return 0 }))
}
