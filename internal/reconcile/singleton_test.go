package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink/memory"
)

func TestUpsertCreatesThenUpdatesSameDay(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	upserter := NewDailyUpserter(store)

	first, err := upserter.Upsert(ctx, "health", "Date", "2024-03-01", sink.Properties{
		"Stress Avg": sink.Number(30),
		"HRV (ms)":   sink.Number(45),
	})
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := upserter.Upsert(ctx, "health", "Date", "2024-03-01", sink.Properties{
		"Stress Avg": sink.Number(25),
	})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.RowID, second.RowID)
	require.Equal(t, 1, second.Matches)

	rows := store.Rows("health")
	require.Len(t, rows, 1)
	require.Equal(t, 25.0, rows[0].Properties["Stress Avg"].Number)
	require.Equal(t, 45.0, rows[0].Properties["HRV (ms)"].Number, "fields absent from the update are left alone")
	require.Equal(t, "2024-03-01", rows[0].Properties["Date"].Date)
}

func TestUpsertDifferentDaysCreateSeparateRows(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	upserter := NewDailyUpserter(store)

	_, err := upserter.Upsert(ctx, "health", "Date", "2024-03-01", sink.Properties{})
	require.NoError(t, err)
	_, err = upserter.Upsert(ctx, "health", "Date", "2024-03-02", sink.Properties{})
	require.NoError(t, err)

	require.Len(t, store.Rows("health"), 2)
}

func TestUpsertUpdatesFirstOfSeveralMatches(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	first := store.Insert("health", sink.Properties{"Date": sink.Date("2024-03-01")})
	store.Insert("health", sink.Properties{"Date": sink.Date("2024-03-01")})

	res, err := NewDailyUpserter(store).Upsert(ctx, "health", "Date", "2024-03-01", sink.Properties{"Sleep Score": sink.Number(80)})
	require.NoError(t, err)
	require.Equal(t, first, res.RowID)
	require.Equal(t, 2, res.Matches)
	require.Len(t, store.Rows("health"), 2)
}

func TestUpsertRejectsMalformedDate(t *testing.T) {
	_, err := NewDailyUpserter(memory.NewStore()).Upsert(context.Background(), "health", "Date", "03/01/2024", nil)
	require.Error(t, err)
}
