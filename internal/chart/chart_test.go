package chart

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink/memory"
)

var fixedNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		ActivitiesDB: "activities",
		CoachDB:      "coach",
		Lookback:     30 * 24 * time.Hour,
		BaseURL:      "https://quickchart.io/chart",
		Width:        600,
		Height:       300,
		Properties:   config.DefaultProperties(),
	}
}

func seedActivities(store *memory.Store) {
	store.Insert("activities", sink.Properties{
		"Date": sink.Date("2024-03-20T07:00:00"), "Distance (km)": sink.Number(10), "Avg HR": sink.Number(150),
	})
	store.Insert("activities", sink.Properties{
		"Date": sink.Date("2024-03-05T07:00:00"), "Distance": sink.Number(5), "Average Heart Rate": sink.Number(140),
	})
	store.Insert("activities", sink.Properties{
		"Date": sink.Date("2024-03-10T07:00:00"), "Distance (km)": sink.Number(8),
	})
	store.Insert("activities", sink.Properties{
		"Date": sink.Date("2024-03-11T07:00:00"), "Distance (km)": sink.Number(0),
	})
	store.Insert("activities", sink.Properties{
		"Date": sink.Date("2024-01-10T07:00:00"), "Distance (km)": sink.Number(21),
	})
}

func decodeChart(t *testing.T, raw string) Document {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "600", u.Query().Get("w"))
	require.Equal(t, "300", u.Query().Get("h"))
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("c")), &doc))
	return doc
}

func TestRunAttachesChartToLatestReport(t *testing.T) {
	store := memory.NewStore()
	seedActivities(store)
	store.Insert("coach", sink.Properties{"Name": sink.Title("Week Analysis: 2024-03-17"), "Date": sink.Date("2024-03-17")})
	latest := store.Insert("coach", sink.Properties{"Name": sink.Title("Week Analysis: 2024-03-24"), "Date": sink.Date("2024-03-24")})
	store.Insert("coach", sink.Properties{"Name": sink.Title("Week Analysis: 2024-03-10"), "Date": sink.Date("2024-03-10")})

	res, err := New(store, testConfig(), WithClock(func() time.Time { return fixedNow })).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, latest, res.ReportID)
	require.Equal(t, 3, res.Points)
	require.Empty(t, res.Reason)

	blocks := store.Blocks(latest)
	require.Len(t, blocks, 2)
	require.Equal(t, sink.Block{Type: sink.BlockHeading3, Text: Heading}, blocks[0])
	require.Equal(t, sink.BlockImage, blocks[1].Type)
	require.Equal(t, res.URL, blocks[1].URL)

	doc := decodeChart(t, res.URL)
	require.Equal(t, "bar", doc.Type)
	require.Equal(t, []string{"Mar 05", "Mar 10", "Mar 20"}, doc.Data.Labels)
	require.Len(t, doc.Data.Datasets, 2)
	require.Equal(t, "y1", doc.Data.Datasets[0].YAxisID)
	require.Equal(t, []float64{140, 0, 150}, doc.Data.Datasets[0].Data)
	require.Equal(t, []float64{5, 8, 10}, doc.Data.Datasets[1].Data)
	require.False(t, doc.Options.Scales["y1"].Grid.DrawOnChartArea)
}

func TestRunWithoutDataReportsReason(t *testing.T) {
	store := memory.NewStore()
	store.Insert("coach", sink.Properties{"Date": sink.Date("2024-03-24")})

	res, err := New(store, testConfig(), WithClock(func() time.Time { return fixedNow })).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "no data found to chart", res.Reason)
	_, _, updates := store.Counts()
	require.Zero(t, updates)
}

func TestRunWithoutReportReportsReason(t *testing.T) {
	store := memory.NewStore()
	seedActivities(store)

	res, err := New(store, testConfig(), WithClock(func() time.Time { return fixedNow })).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "no coach report found", res.Reason)
	require.NotEmpty(t, res.URL)
}

func TestRunPropagatesQueryFailure(t *testing.T) {
	boom := errors.New("sink down")
	store := memory.NewStore()
	store.QueryHook = func(string, sink.Query) error { return boom }

	_, err := New(store, testConfig()).Run(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestBuildDocumentShape(t *testing.T) {
	body, err := json.Marshal(BuildDocument([]string{"Mar 01"}, []float64{4.2}, []float64{0}))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	datasets := doc["data"].(map[string]any)["datasets"].([]any)
	line := datasets[0].(map[string]any)
	require.Equal(t, "line", line["type"])
	require.Equal(t, false, line["fill"])
	require.Equal(t, "#ff6384", line["borderColor"])
	bar := datasets[1].(map[string]any)
	require.Equal(t, "rgba(54, 162, 235, 0.5)", bar["backgroundColor"])
	require.NotContains(t, bar, "fill")

	title := doc["options"].(map[string]any)["title"].(map[string]any)
	require.Equal(t, "Training Load: Volume vs Intensity (Last 30 Days)", title["text"])
}

func TestURLRejectsBadBase(t *testing.T) {
	_, err := URL("://bad", BuildDocument(nil, nil, nil), 1, 1)
	require.Error(t, err)
}
