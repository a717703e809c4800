package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/record"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink/memory"
)

type stubSource struct {
	activities []record.Record
	summary    record.Record
	err        error
	requested  []int
	dates      []string
}

func (s *stubSource) ListRecentActivities(_ context.Context, offset, count int) ([]record.Record, error) {
	s.requested = append(s.requested, offset, count)
	if s.err != nil {
		return nil, s.err
	}
	if count < len(s.activities) {
		return s.activities[:count], nil
	}
	return s.activities, nil
}

func (s *stubSource) GetDailySummary(_ context.Context, date string) (record.Record, error) {
	s.dates = append(s.dates, date)
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type capturingReporter struct {
	errs []error
}

func (r *capturingReporter) Capture(err error, _ map[string]string) {
	r.errs = append(r.errs, err)
}

func activity(id int64, name, start string, meters float64, extra map[string]any) record.Record {
	rec := record.Record{
		"activityId":     json.Number(jsonInt(id)),
		"activityName":   name,
		"startTimeLocal": start,
		"distance":       meters,
		"duration":       1800.5,
		"averageHR":      json.Number("142"),
		"activityType":   map[string]any{"typeKey": "running"},
	}
	for k, v := range extra {
		rec[k] = v
	}
	return rec
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func testConfig() Config {
	return Config{
		ActivitiesDB:   "activities",
		HealthDB:       "health",
		ActivityWindow: 10,
		GearWindow:     5,
		Properties:     config.DefaultProperties(),
	}
}

func TestSyncActivitiesCreatesOnlyMissingRows(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Insert("activities", sink.Properties{
		"Activity Name": sink.Title("Old Run"),
		"Activity ID":   sink.RichText("1001"),
	})
	source := &stubSource{activities: []record.Record{
		activity(1001, "Old Run", "2024-03-01 07:00:00", 5000, nil),
		activity(1002, "Tempo", "2024-03-02 07:00:00", 8000, nil),
		activity(1003, "Long Run", "2024-03-03 07:00:00", 21097.5, map[string]any{"averageHR": 151.6}),
	}}
	pub := &recordingPublisher{}
	mem := journal.NewMemory()

	report, err := New(source, store, testConfig(), WithPublisher(pub), WithJournal(mem)).SyncActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{0, 10}, source.requested)
	require.Equal(t, 3, report.Fetched)
	require.Equal(t, 2, report.Count(journal.Created))
	require.Equal(t, 1, report.Count(journal.Exists))

	rows := store.Rows("activities")
	require.Len(t, rows, 3)
	for _, row := range rows[1:] {
		for _, name := range []string{"Activity Name", "Date", "Activity ID", "Distance (km)", "Duration", "Sport", "Avg HR"} {
			require.Contains(t, row.Properties, name)
		}
	}
	require.Equal(t, "1002", rows[1].Properties["Activity ID"].Text)
	require.Equal(t, "2024-03-02T07:00:00", rows[1].Properties["Date"].Date)
	require.Equal(t, 21.1, rows[2].Properties["Distance (km)"].Number)
	require.Equal(t, 142.0, rows[1].Properties["Avg HR"].Number)
	require.Equal(t, 152.0, rows[2].Properties["Avg HR"].Number)

	require.Len(t, pub.events, 2)
	require.Equal(t, events.RowCreated, pub.events[0].Type)
	require.Equal(t, "1002", pub.events[0].Key)
	require.Equal(t, report.RunID, pub.events[0].RunID)

	_, entries, err := mem.GetRun(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestSyncActivitiesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	source := &stubSource{activities: []record.Record{
		activity(1, "A", "2024-03-01 07:00:00", 1000, nil),
		activity(2, "B", "2024-03-02 07:00:00", 2000, nil),
	}}
	syncer := New(source, store, testConfig())

	first, err := syncer.SyncActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, first.Count(journal.Created))

	second, err := syncer.SyncActivities(ctx)
	require.NoError(t, err)
	require.Zero(t, second.Count(journal.Created))
	require.Equal(t, 2, second.Count(journal.Exists))
	require.Len(t, store.Rows("activities"), 2)
}

func TestSyncActivitiesOmitsAbsentOptionalFields(t *testing.T) {
	store := memory.NewStore()
	rec := activity(7, "Strength", "2024-03-01 18:00:00", 0, nil)
	delete(rec, "averageHR")
	delete(rec, "distance")
	rec["activityType"] = nil

	_, err := New(&stubSource{activities: []record.Record{rec}}, store, testConfig()).SyncActivities(context.Background())
	require.NoError(t, err)

	rows := store.Rows("activities")
	require.Len(t, rows, 1)
	require.NotContains(t, rows[0].Properties, "Avg HR")
	require.NotContains(t, rows[0].Properties, "Distance (km)")
	require.NotContains(t, rows[0].Properties, "Sport")
}

func TestSyncActivitiesIsolatesRecordFailures(t *testing.T) {
	store := memory.NewStore()
	broken := activity(2, "", "2024-03-02 07:00:00", 1000, nil)
	noID := activity(0, "Mystery", "2024-03-03 07:00:00", 1000, nil)
	delete(noID, "activityId")
	source := &stubSource{activities: []record.Record{
		activity(1, "First", "2024-03-01 07:00:00", 1000, nil),
		broken,
		noID,
		activity(4, "Fourth", "2024-03-04 07:00:00", 1000, nil),
	}}

	writes := 0
	store.WriteHook = func(op string, props sink.Properties) error {
		writes++
		if props["Activity ID"].Text == "4" {
			return errors.New("validation_error")
		}
		return nil
	}
	reporter := &capturingReporter{}

	report, err := New(source, store, testConfig(), WithReporter(reporter)).SyncActivities(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Count(journal.Created))
	require.Equal(t, 2, report.Count(journal.Skipped))
	require.Equal(t, 1, report.Count(journal.Failed))
	require.Equal(t, 2, writes)
	require.Len(t, store.Rows("activities"), 1)
	require.Len(t, reporter.errs, 1)
}

func TestSyncActivitiesDedupFailureIsPerRecord(t *testing.T) {
	store := memory.NewStore()
	store.QueryHook = func(string, sink.Query) error { return errors.New("rate_limited") }
	source := &stubSource{activities: []record.Record{
		activity(1, "A", "2024-03-01 07:00:00", 1000, nil),
		activity(2, "B", "2024-03-02 07:00:00", 1000, nil),
	}}

	report, err := New(source, store, testConfig()).SyncActivities(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Count(journal.Failed))
	require.Empty(t, store.Rows("activities"))
}

func TestSyncActivitiesFailsWhenUpstreamFails(t *testing.T) {
	mem := journal.NewMemory()
	report, err := New(&stubSource{err: errors.New("503")}, memory.NewStore(), testConfig(), WithJournal(mem)).SyncActivities(context.Background())
	require.Error(t, err)

	run, _, getErr := mem.GetRun(context.Background(), report.RunID)
	require.NoError(t, getErr)
	require.Equal(t, journal.StatusFailed, run.Status)
}

func TestSyncActivitiesRequiresDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.ActivitiesDB = ""
	_, err := New(&stubSource{}, memory.NewStore(), cfg).SyncActivities(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}
