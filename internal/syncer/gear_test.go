package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/record"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink/memory"
)

func gearConfig() Config {
	cfg := testConfig()
	cfg.GearDB = "gear"
	return cfg
}

func TestSyncActivitiesLinksGearForWholeWindow(t *testing.T) {
	store := memory.NewStore()
	shoe := store.Insert("gear", sink.Properties{"Garmin Gear ID": sink.RichText("77")})
	existing := store.Insert("activities", sink.Properties{
		"Activity Name": sink.Title("Easy Run"),
		"Date":          sink.Date("2024-03-01T07:00:00"),
		"Activity ID":   sink.RichText("1"),
	})
	source := &stubSource{activities: []record.Record{
		activity(1, "Easy Run", "2024-03-01 07:00:00", 5000, map[string]any{"gear": map[string]any{"gearPk": json.Number("77")}}),
		activity(2, "Tempo", "2024-03-02 07:00:00", 8000, map[string]any{"deviceId": "unknown-watch"}),
		activity(3, "Swim", "2024-03-03 07:00:00", 1500, nil),
	}}
	pub := &recordingPublisher{}

	report, err := New(source, store, gearConfig(), WithPublisher(pub)).SyncActivities(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Count(journal.Exists))
	require.Equal(t, 2, report.Count(journal.Created))
	require.Equal(t, 1, report.Count(journal.Linked))
	require.Equal(t, 2, report.Count(journal.Skipped))

	row, ok := store.Row(existing)
	require.True(t, ok)
	require.Equal(t, []string{shoe}, row.Properties["Gear"].Relation)

	var tempo *sink.Row
	rows := store.Rows("activities")
	for i := range rows {
		if rows[i].Properties["Activity ID"].Text == "2" {
			tempo = &rows[i]
		}
	}
	require.NotNil(t, tempo)
	require.NotContains(t, tempo.Properties, "Gear")

	var linked []events.Event
	for _, e := range pub.events {
		if e.Type == events.GearLinked {
			linked = append(linked, e)
		}
	}
	require.Len(t, linked, 1)
	require.Equal(t, existing, linked[0].RowID)
}

func TestSyncGearMissIsNotFatal(t *testing.T) {
	store := memory.NewStore()
	store.Insert("gear", sink.Properties{"Garmin Gear ID": sink.RichText("bike-1")})
	bikeRide := store.Insert("activities", sink.Properties{
		"Activity Name": sink.Title("Commute"),
		"Date":          sink.Date("2024-03-05T08:00:00"),
	})
	source := &stubSource{activities: []record.Record{
		activity(1, "Run", "2024-03-04 07:00:00", 5000, map[string]any{"gearId": "shoe-x"}),
		activity(2, "Commute", "2024-03-05 08:00:00", 9000, map[string]any{"gear": map[string]any{"uuid": "bike-1"}}),
		activity(3, "Lost", "2024-03-06 08:00:00", 9000, map[string]any{"deviceId": "bike-1"}),
	}}

	report, err := New(source, store, gearConfig()).SyncGear(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{0, 5}, source.requested)
	require.Equal(t, 1, report.Count(journal.Linked))
	require.Equal(t, 2, report.Count(journal.Skipped))

	row, _ := store.Row(bikeRide)
	require.Len(t, row.Properties["Gear"].Relation, 1)
}

func TestSyncGearIndexFailureAbortsRun(t *testing.T) {
	store := memory.NewStore()
	boom := errors.New("gear db unavailable")
	store.QueryHook = func(databaseID string, _ sink.Query) error {
		if databaseID == "gear" {
			return boom
		}
		return nil
	}
	source := &stubSource{activities: []record.Record{activity(1, "Run", "2024-03-04 07:00:00", 5000, nil)}}

	_, err := New(source, store, gearConfig()).SyncGear(context.Background())
	require.ErrorIs(t, err, boom)

	_, err = New(source, store, gearConfig()).SyncActivities(context.Background())
	require.ErrorIs(t, err, boom)
	require.Empty(t, store.Rows("activities"))
}

func TestSyncGearRequiresGearDatabase(t *testing.T) {
	_, err := New(&stubSource{}, memory.NewStore(), testConfig()).SyncGear(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}
