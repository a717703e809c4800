package syncer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/record"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink/memory"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 3, 1, 21, 0, 0, 0, time.Local) }
}

func TestSyncHealthKeepsOneRowPerDay(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	source := &stubSource{summary: record.Record{
		"hrvStatus":               map[string]any{"lastNightAvg": json.Number("48")},
		"bodyBatteryHighestValue": json.Number("90"),
		"bodyBatteryLowestValue":  json.Number("0"),
		"averageStressLevel":      json.Number("31"),
	}}
	syncer := New(source, store, testConfig(), WithClock(fixedClock()))

	first, err := syncer.SyncHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Count(journal.Created))
	require.Equal(t, []string{"2024-03-01"}, source.dates)

	source.summary["averageStressLevel"] = json.Number("24")
	source.summary["sleepScore"] = json.Number("81")
	second, err := syncer.SyncHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, second.Count(journal.Updated))

	rows := store.Rows("health")
	require.Len(t, rows, 1)
	props := rows[0].Properties
	require.Equal(t, "2024-03-01", props["Date"].Date)
	require.Equal(t, 48.0, props["HRV (ms)"].Number)
	require.Equal(t, 24.0, props["Stress Avg"].Number)
	require.Equal(t, 81.0, props["Sleep Score"].Number)
	require.NotContains(t, props, "Body Battery Min")
}

func TestSyncHealthSkipsWhenNoDataYet(t *testing.T) {
	store := memory.NewStore()
	source := &stubSource{summary: record.Record{
		"hrvStatus":          nil,
		"averageStressLevel": json.Number("0"),
		"sleepScore":         json.Number("77"),
	}}

	report, err := New(source, store, testConfig(), WithClock(fixedClock())).SyncHealth(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Count(journal.Skipped))
	require.Empty(t, store.Rows("health"))

	_, creates, updates := store.Counts()
	require.Zero(t, creates)
	require.Zero(t, updates)
}

func TestSyncHealthRequiresDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.HealthDB = ""
	_, err := New(&stubSource{}, memory.NewStore(), cfg).SyncHealth(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}
