package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	matchesSheet = "Matches"
	summarySheet = "Summary"
)

var matchHeader = []interface{}{
	"Match ID", "Arena", "Server", "Status",
	"Fighter A", "Fighter A Ludus", "Fighter B", "Fighter B Ludus",
	"Matched At", "Acceptance Deadline", "Started At", "Completed At",
	"Winner", "Method",
}

// MatchHistoryExporter writes an arena's recent matches to an xlsx workbook.
type MatchHistoryExporter struct {
	matches    *repositories.MatchRepository
	gladiators *repositories.GladiatorRepository
}

func NewMatchHistoryExporter(db *gorm.DB) *MatchHistoryExporter {
	return &MatchHistoryExporter{
		matches:    repositories.NewMatchRepository(db),
		gladiators: repositories.NewGladiatorRepository(db),
	}
}

// Export writes at most limit matches, newest first, and returns how many rows were written.
func (e *MatchHistoryExporter) Export(ctx context.Context, arenaID, serverID string, limit int, w io.Writer) (int, error) {
	matches, err := e.matches.ListByArena(ctx, arenaID, serverID, limit)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(matches)*2)
	for _, m := range matches {
		ids = append(ids, m.FighterAID, m.FighterBID)
	}
	fighters, err := e.gladiators.GetMany(ctx, ids)
	if err != nil {
		return 0, err
	}

	if err := WriteMatchHistory(w, matches, fighters); err != nil {
		return 0, err
	}
	return len(matches), nil
}

// WriteMatchHistory renders matches as a "Matches" sheet with one row per
// match and a "Summary" sheet counting matches by status.
func WriteMatchHistory(w io.Writer, matches []models.Match, fighters map[string]models.Gladiator) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", matchesSheet); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to prepare workbook")
	}
	if err := f.SetSheetRow(matchesSheet, "A1", &matchHeader); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to write header")
	}

	counts := make(map[string]int)
	for i, m := range matches {
		counts[m.Status]++

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to address row")
		}
		row := matchRow(m, fighters)
		if err := f.SetSheetRow(matchesSheet, cell, &row); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to write match row")
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to add summary sheet")
	}
	summary := [][]interface{}{{"Status", "Matches"}}
	for _, status := range []string{
		models.MatchStatusPendingAcceptance,
		models.MatchStatusPending,
		models.MatchStatusInProgress,
		models.MatchStatusCompleted,
		models.MatchStatusCancelled,
	} {
		summary = append(summary, []interface{}{status, counts[status]})
	}
	summary = append(summary, []interface{}{"total", len(matches)})
	for i := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &summary[i]); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to write summary")
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to write workbook")
	}
	return nil
}

func matchRow(m models.Match, fighters map[string]models.Gladiator) []interface{} {
	a, b := fighters[m.FighterAID], fighters[m.FighterBID]
	return []interface{}{
		m.ID, m.ArenaID, m.ServerID, m.Status,
		nameOr(a, m.FighterAID), a.LudusID, nameOr(b, m.FighterBID), b.LudusID,
		formatTime(&m.MatchedAt), formatTime(m.AcceptanceDeadline), formatTime(m.StartedAt), formatTime(m.CompletedAt),
		deref(m.WinnerID), deref(m.WinnerMethod),
	}
}

func nameOr(g models.Gladiator, id string) string {
	if g.Name != "" {
		return g.Name
	}
	return id
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
