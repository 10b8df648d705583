package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/IshaanNene/storyscout/internal/types"
)

func TestDayFilterIsHalfOpen(t *testing.T) {
	day := time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)
	filter := dayFilter(day)

	require.Len(t, filter, 1)
	require.Equal(t, "scrape_date", filter[0].Key)

	bounds := filter[0].Value.(bson.D)
	require.Equal(t, "$gte", bounds[0].Key)
	require.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), bounds[0].Value)
	require.Equal(t, "$lt", bounds[1].Key)
	require.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), bounds[1].Value)
}

func TestEntryUpdateTouchesOnlyVolatileFields(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	doc := entryUpdateDoc(types.EntryUpdate{Points: types.IntPtr(3), UpdatedAt: at})

	require.Equal(t, "$set", doc[0].Key)
	set := doc[0].Value.(bson.D)

	keys := make([]string, 0, len(set))
	for _, e := range set {
		keys = append(keys, e.Key)
	}
	require.Equal(t, []string{"saves.$.points", "saves.$.number_of_comments", "saves.$.updated_at"}, keys)
}

func TestEntryFilterMatchesTitleWithinDay(t *testing.T) {
	filter := entryFilter(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), "Zork is back")
	require.Len(t, filter, 2)
	require.Equal(t, "saves.title", filter[1].Key)
	require.Equal(t, "Zork is back", filter[1].Value)
}

func TestSavedPipeline(t *testing.T) {
	require.Len(t, savedPipeline(nil), 3)

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	withDay := savedPipeline(&day)
	require.Len(t, withDay, 4)
	require.Equal(t, "$match", withDay[0][0].Key)
}
