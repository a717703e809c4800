package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink/memory"
)

var linkCfg = LinkerConfig{
	ActivitiesDB:     "activities",
	DateProperty:     "Date",
	NameProperty:     "Activity Name",
	RelationProperty: "Gear",
}

func seedActivity(store *memory.Store, name, date string, extra sink.Properties) string {
	props := sink.Properties{"Activity Name": sink.Title(name), "Date": sink.Date(date)}
	for k, v := range extra {
		props[k] = v
	}
	return store.Insert("activities", props)
}

func TestLinkSetsRelationOnMatchingActivity(t *testing.T) {
	store := memory.NewStore()
	runID := seedActivity(store, "Morning Run", "2024-03-01T07:00:00", nil)
	seedActivity(store, "Morning Run", "2024-03-02T07:00:00", nil)

	res, err := NewLinker(store, linkCfg).Link(context.Background(), LinkRequest{
		EquipmentID:  "shoe-1",
		Timestamp:    "2024-03-01 07:00:00",
		ActivityName: "Morning Run",
	}, Index{"shoe-1": "gear-row"})
	require.NoError(t, err)
	require.Equal(t, Linked, res.Outcome)
	require.Equal(t, runID, res.ActivityRowID)
	require.False(t, res.Ambiguous)

	row, _ := store.Row(runID)
	require.Equal(t, []string{"gear-row"}, row.Properties["Gear"].Relation)
}

func TestLinkOverwritesExistingRelation(t *testing.T) {
	store := memory.NewStore()
	id := seedActivity(store, "Long Run", "2024-03-03T08:00:00", sink.Properties{"Gear": sink.Relation("old-a", "old-b")})

	_, err := NewLinker(store, linkCfg).Link(context.Background(), LinkRequest{
		EquipmentID: "shoe-2", Timestamp: "2024-03-03 08:00:00", ActivityName: "Long Run",
	}, Index{"shoe-2": "new"})
	require.NoError(t, err)

	row, _ := store.Row(id)
	require.Equal(t, []string{"new"}, row.Properties["Gear"].Relation)
}

func TestLinkFlagsAmbiguousMatchAndUsesFirst(t *testing.T) {
	store := memory.NewStore()
	first := seedActivity(store, "Easy Run", "2024-03-04T07:00:00", nil)
	second := seedActivity(store, "Easy Run + strides", "2024-03-04T18:00:00", nil)

	res, err := NewLinker(store, linkCfg).Link(context.Background(), LinkRequest{
		EquipmentID: "shoe-1", Timestamp: "2024-03-04 18:00:00", ActivityName: "Easy Run",
	}, Index{"shoe-1": "g"})
	require.NoError(t, err)
	require.True(t, res.Ambiguous)
	require.Equal(t, first, res.ActivityRowID)

	row, _ := store.Row(second)
	require.NotContains(t, row.Properties, "Gear")
}

func TestLinkMissesAreOutcomesNotErrors(t *testing.T) {
	store := memory.NewStore()
	seedActivity(store, "Ride", "2024-03-05T07:00:00", nil)
	linker := NewLinker(store, linkCfg)

	res, err := linker.Link(context.Background(), LinkRequest{
		EquipmentID: "unknown", Timestamp: "2024-03-05 07:00:00", ActivityName: "Ride",
	}, Index{"bike": "g"})
	require.NoError(t, err)
	require.Equal(t, UnknownGear, res.Outcome)

	res, err = linker.Link(context.Background(), LinkRequest{
		EquipmentID: "bike", Timestamp: "2024-03-06 07:00:00", ActivityName: "Ride",
	}, Index{"bike": "g"})
	require.NoError(t, err)
	require.Equal(t, NoActivity, res.Outcome)

	_, _, updates := store.Counts()
	require.Zero(t, updates)
}

func TestLinkRejectsIncompleteRequest(t *testing.T) {
	_, err := NewLinker(memory.NewStore(), linkCfg).Link(context.Background(), LinkRequest{
		EquipmentID: "bike", Timestamp: "yesterday", ActivityName: "Ride",
	}, Index{})
	require.ErrorIs(t, err, ErrLinkInput)
}

func TestLinkPropagatesUpdateFailure(t *testing.T) {
	boom := errors.New("conflict")
	store := memory.NewStore()
	seedActivity(store, "Swim", "2024-03-07T06:00:00", nil)
	store.WriteHook = func(string, sink.Properties) error { return boom }

	_, err := NewLinker(store, linkCfg).Link(context.Background(), LinkRequest{
		EquipmentID: "cap", Timestamp: "2024-03-07 06:00:00", ActivityName: "Swim",
	}, Index{"cap": "g"})
	require.ErrorIs(t, err, boom)
}
