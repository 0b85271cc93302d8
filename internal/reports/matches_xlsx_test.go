package reports

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExport_WritesNewestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedGladiator(t, db, models.Gladiator{ID: "g1", Name: "Spartacus", OwnerID: "o1"})
	testutil.SeedGladiator(t, db, models.Gladiator{ID: "g2", Name: "Crixus", OwnerID: "o2"})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := base.Add(5 * time.Minute)
	winner, method := "g1", "knockout"
	require.NoError(t, db.Create(&models.Match{
		ID: "m-old", ArenaID: "colosseum", ServerID: "s1", FighterAID: "g1", FighterBID: "g2",
		Status: models.MatchStatusCompleted, MatchedAt: base, CompletedAt: &completedAt,
		WinnerID: &winner, WinnerMethod: &method,
	}).Error)
	require.NoError(t, db.Create(&models.Match{
		ID: "m-new", ArenaID: "colosseum", ServerID: "s1", FighterAID: "g2", FighterBID: "g1",
		Status: models.MatchStatusCancelled, MatchedAt: base.Add(time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.Match{
		ID: "m-elsewhere", ArenaID: "circus", ServerID: "s1", FighterAID: "g1", FighterBID: "g2",
		Status: models.MatchStatusCancelled, MatchedAt: base,
	}).Error)

	var buf bytes.Buffer
	n, err := NewMatchHistoryExporter(db).Export(context.Background(), "colosseum", "s1", 10, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(matchesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Match ID", rows[0][0])

	assert.Equal(t, "m-new", rows[1][0])
	assert.Equal(t, "cancelled", rows[1][3])
	assert.Equal(t, "Crixus", rows[1][4])

	old := rows[2]
	assert.Equal(t, "m-old", old[0])
	assert.Equal(t, "Spartacus", old[4])
	assert.Equal(t, "ludus-o1", old[5])
	assert.Equal(t, "2026-03-01T12:00:00Z", old[8])
	assert.Equal(t, "2026-03-01T12:05:00Z", old[11])
	assert.Equal(t, []string{"g1", "knockout"}, old[12:14])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"completed", "1"}, summary[4])
	assert.Equal(t, []string{"cancelled", "1"}, summary[5])
	assert.Equal(t, []string{"total", "2"}, summary[6])
}

func TestWriteMatchHistory_UnknownFighterFallsBackToID(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMatchHistory(&buf, []models.Match{{
		ID: "m1", ArenaID: "colosseum", ServerID: "s1", FighterAID: "ghost", FighterBID: "g2",
		Status: models.MatchStatusPendingAcceptance,
	}}, map[string]models.Gladiator{"g2": {ID: "g2", Name: "Crixus"}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(matchesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ghost", rows[1][4])
	assert.Equal(t, "Crixus", rows[1][6])
}
