package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/reconcile"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "secret_token", Version: "2022-06-28"})
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestQueryRowsEncodesFilterAndDecodesPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/databases/db-1/query", r.URL.Path)
		require.Equal(t, "Bearer secret_token", r.Header.Get("Authorization"))
		require.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))

		body := decodeBody(t, r)
		require.Equal(t, float64(1), body["page_size"])
		require.Equal(t, map[string]any{
			"and": []any{
				map[string]any{"property": "Date", "date": map[string]any{"equals": "2024-03-01"}},
				map[string]any{"property": "Activity Name", "title": map[string]any{"contains": "Run"}},
			},
		}, body["filter"])
		require.Equal(t, []any{map[string]any{"property": "Date", "direction": "descending"}}, body["sorts"])

		_, _ = w.Write([]byte(`{
			"results": [{
				"id": "page-1",
				"properties": {
					"Activity Name": {"type": "title", "title": [{"plain_text": "Morning "}, {"plain_text": "Run"}]},
					"Distance (km)": {"type": "number", "number": 10.2},
					"Avg HR": {"type": "number", "number": null},
					"Date": {"type": "date", "date": {"start": "2024-03-01T07:00:00.000+01:00"}},
					"Sport": {"type": "select", "select": {"name": "running"}},
					"Gear": {"type": "relation", "relation": [{"id": "gear-1"}]},
					"Formula": {"type": "formula", "formula": {"number": 3}}
				}
			}],
			"has_more": true,
			"next_cursor": "cursor-2"
		}`))
	})

	res, err := client.QueryRows(context.Background(), "db-1", sink.Query{
		Filter: sink.AllOf(
			*sink.Where("Date", sink.KindDate, sink.Equals, "2024-03-01"),
			*sink.Where("Activity Name", sink.KindTitle, sink.Contains, "Run"),
		),
		Sorts:    []sink.Sort{{Property: "Date", Descending: true}},
		PageSize: 1,
	})
	require.NoError(t, err)
	require.True(t, res.HasMore)
	require.Equal(t, "cursor-2", res.NextCursor)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	require.Equal(t, "page-1", row.ID)
	require.Equal(t, sink.Title("Morning Run"), row.Properties["Activity Name"])
	require.Equal(t, sink.Number(10.2), row.Properties["Distance (km)"])
	require.Equal(t, sink.Select("running"), row.Properties["Sport"])
	require.Equal(t, []string{"gear-1"}, row.Properties["Gear"].Relation)
	require.NotContains(t, row.Properties, "Avg HR")
	require.NotContains(t, row.Properties, "Formula")
}

func TestQueryRowsPaginatesThroughIndexBuilder(t *testing.T) {
	pages := map[string]string{
		"":   `{"results":[{"id":"r1","properties":{"Garmin Gear ID":{"type":"rich_text","rich_text":[{"plain_text":"g1"}]}}}],"has_more":true,"next_cursor":"c1"}`,
		"c1": `{"results":[{"id":"r2","properties":{"Garmin Gear ID":{"type":"rich_text","rich_text":[{"plain_text":"g2"}]}}}],"has_more":true,"next_cursor":"c2"}`,
		"c2": `{"results":[{"id":"r3","properties":{"Garmin Gear ID":{"type":"rich_text","rich_text":[]}}}],"has_more":false,"next_cursor":null}`,
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cursor, _ := decodeBody(t, r)["start_cursor"].(string)
		_, _ = w.Write([]byte(pages[cursor]))
	})

	index, err := reconcile.BuildIndex(context.Background(), client, "gear-db", nil, "Garmin Gear ID")
	require.NoError(t, err)
	require.Equal(t, reconcile.Index{"g1": "r1", "g2": "r2"}, index)
}

func TestCreateRowEncodesProperties(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pages", r.URL.Path)
		body := decodeBody(t, r)
		require.Equal(t, map[string]any{"database_id": "db-1"}, body["parent"])

		props := body["properties"].(map[string]any)
		require.Equal(t, map[string]any{"rich_text": []any{map[string]any{"type": "text", "text": map[string]any{"content": "123"}}}}, props["Activity ID"])
		require.Equal(t, map[string]any{"number": 5.5}, props["Distance (km)"])
		require.Equal(t, map[string]any{"date": map[string]any{"start": "2024-03-01"}}, props["Date"])
		require.Equal(t, map[string]any{"select": map[string]any{"name": "Good"}}, props["Recovery Score"])
		require.Equal(t, map[string]any{"relation": []any{map[string]any{"id": "g"}}}, props["Gear"])
		require.NotContains(t, props, "Avg HR")

		_, _ = w.Write([]byte(`{"id":"new-page"}`))
	})

	id, err := client.CreateRow(context.Background(), "db-1", sink.Properties{
		"Activity ID":    sink.RichText("123"),
		"Distance (km)":  sink.Number(5.5),
		"Date":           sink.Date("2024-03-01"),
		"Recovery Score": sink.Select("Good"),
		"Gear":           sink.Relation("g"),
	})
	require.NoError(t, err)
	require.Equal(t, "new-page", id)
}

func TestUpdateRowAndAppendBlocksUsePatch(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		paths = append(paths, r.URL.Path)
		body := decodeBody(t, r)
		if children, ok := body["children"].([]any); ok {
			require.Len(t, children, 2)
			image := children[1].(map[string]any)
			require.Equal(t, "image", image["type"])
			require.Equal(t, map[string]any{"type": "external", "external": map[string]any{"url": "https://chart"}}, image["image"])
		}
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, client.UpdateRow(context.Background(), "page-1", sink.Properties{"Gear": sink.Relation("g")}))
	require.NoError(t, client.AppendBlocks(context.Background(), "page-1", []sink.Block{
		{Type: sink.BlockHeading3, Text: "📊 Monthly Visuals"},
		{Type: sink.BlockImage, URL: "https://chart"},
	}))
	require.Equal(t, []string{"/pages/page-1", "/blocks/page-1/children"}, paths)
}

func TestErrorsMapToAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`))
	})

	_, err := client.Me(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "unauthorized", apiErr.Code)
	require.True(t, IsUnauthorized(err))
}

func TestNonJSONErrorStillCarriesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := client.QueryRows(context.Background(), "db", sink.Query{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.False(t, IsUnauthorized(err))
}

func TestUnsupportedFilterIsRejected(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("request should not be sent")
	})

	_, err := client.QueryRows(context.Background(), "db", sink.Query{Filter: &sink.Filter{Property: "Date", Kind: sink.KindDate, Condition: "before"}})
	require.ErrorIs(t, err, ErrUnsupported)
}
