package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenAppliesSchema(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))

	// Reopening the same file must not fail on existing tables.
	path := filepath.Join(t.TempDir(), "again.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	second, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestAuditInsertAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertAudit(ctx, AuditEntry{
			ID:              string(rune('a' + i)),
			DatasetID:       "ds-1",
			DetectionMethod: "spectral_signatures",
			Action:          "analyze",
			ThreatScore:     float64(i * 10),
			ThreatGrade:     "B",
			Details:         `{"suspicious":5}`,
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, 20.0, entries[0].ThreatScore)
	assert.Equal(t, map[string]any{"suspicious": float64(5)}, entries[0].DetailsMap())
}

func TestAuditDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertAudit(ctx, AuditEntry{
		ID:              "x",
		DetectionMethod: "activation_clustering",
		Action:          "analyze",
	}))

	entries, err := s.ListAudit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.Equal(t, "{}", entries[0].Details)
}

func TestPurificationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := PurificationRecord{
		ID:             "pur-1",
		AnalysisID:     "an-1",
		DatasetID:      "ds-1",
		CleanPath:      "/tmp/clean.csv",
		Removed:        42,
		IntegrityScore: 95.8,
		CreatedAt:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.InsertPurification(ctx, rec))

	got, err := s.GetPurification(ctx, "pur-1")
	require.NoError(t, err)
	assert.Equal(t, rec.CleanPath, got.CleanPath)
	assert.Equal(t, rec.Removed, got.Removed)
	assert.InDelta(t, rec.IntegrityScore, got.IntegrityScore, 1e-9)
}

func TestGetPurificationNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetPurification(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
