package matchmaking

import (
	"testing"
	"time"

	"github.com/mroshb/ludus_arena/internal/models"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(id, owner string, score int, offset time.Duration) models.QueueEntry {
	return models.QueueEntry{
		ID:          "q-" + id,
		GladiatorID: id,
		OwnerID:     owner,
		LudusID:     "ludus-" + owner,
		SkillScore:  score,
		QueuedAt:    base.Add(offset),
	}
}

func ids(p Pair) map[string]bool {
	return map[string]bool{p.A.GladiatorID: true, p.B.GladiatorID: true}
}

func TestSelectBestPair(t *testing.T) {
	tests := []struct {
		name      string
		entries   []models.QueueEntry
		wantFound bool
		wantIDs   []string
		wantGap   int
	}{
		{
			name:    "Empty queue",
			entries: nil,
		},
		{
			name:    "Single entry",
			entries: []models.QueueEntry{entry("g1", "o1", 1000, 0)},
		},
		{
			name: "Closest skills win",
			entries: []models.QueueEntry{
				entry("g100", "o1", 100, 0),
				entry("g102", "o2", 102, time.Second),
				entry("g150", "o3", 150, 2*time.Second),
				entry("g98", "o4", 98, 3*time.Second),
			},
			wantFound: true,
			wantIDs:   []string{"g100", "g102"},
			wantGap:   2,
		},
		{
			name: "Tie goes to the oldest waiter",
			entries: []models.QueueEntry{
				entry("new1", "o1", 500, 10*time.Second),
				entry("new2", "o2", 510, 11*time.Second),
				entry("old1", "o3", 700, 0),
				entry("old2", "o4", 710, 12*time.Second),
			},
			wantFound: true,
			wantIDs:   []string{"old1", "old2"},
			wantGap:   10,
		},
		{
			name: "Same owner never paired",
			entries: []models.QueueEntry{
				entry("g1", "o1", 1000, 0),
				entry("g2", "o1", 1000, time.Second),
			},
		},
		{
			name: "Same ludus never paired",
			entries: []models.QueueEntry{
				{GladiatorID: "g1", OwnerID: "o1", LudusID: "capua", SkillScore: 1000, QueuedAt: base},
				{GladiatorID: "g2", OwnerID: "o2", LudusID: "capua", SkillScore: 1000, QueuedAt: base},
			},
		},
		{
			name: "Skips the self match for a worse cross pair",
			entries: []models.QueueEntry{
				entry("g1", "o1", 1000, 0),
				entry("g2", "o1", 1000, time.Second),
				entry("g3", "o2", 1300, 2*time.Second),
			},
			wantFound: true,
			wantIDs:   []string{"g1", "g3"},
			wantGap:   300,
		},
		{
			name: "Zero gap returns first exact pair",
			entries: []models.QueueEntry{
				entry("g1", "o1", 1000, 0),
				entry("g2", "o2", 1000, time.Second),
				entry("g3", "o3", 1000, -time.Hour),
			},
			wantFound: true,
			wantIDs:   []string{"g1", "g2"},
			wantGap:   0,
		},
		{
			name: "End-to-end scores",
			entries: []models.QueueEntry{
				entry("G1", "o1", 1000, 0),
				entry("G2", "o2", 1005, time.Second),
			},
			wantFound: true,
			wantIDs:   []string{"G1", "G2"},
			wantGap:   5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := SelectBestPair(tt.entries)
			if found != tt.wantFound {
				t.Fatalf("SelectBestPair() found = %v, want %v", found, tt.wantFound)
			}
			if !found {
				return
			}
			gotIDs := ids(got)
			for _, id := range tt.wantIDs {
				if !gotIDs[id] {
					t.Errorf("SelectBestPair() = {%s, %s}, want %v", got.A.GladiatorID, got.B.GladiatorID, tt.wantIDs)
				}
			}
			if got.SkillGap() != tt.wantGap {
				t.Errorf("SkillGap() = %d, want %d", got.SkillGap(), tt.wantGap)
			}
		})
	}
}

func TestSelectBestPair_NeverSharesOwnerOrLudus(t *testing.T) {
	owners := []string{"o1", "o2", "o1", "o3", "o2", "o3"}
	var entries []models.QueueEntry
	for i, owner := range owners {
		entries = append(entries, entry(string(rune('a'+i)), owner, 1000+i*7%13, time.Duration(i)*time.Second))
	}

	for n := 0; n <= len(entries); n++ {
		got, found := SelectBestPair(entries[:n])
		if !found {
			continue
		}
		if got.A.OwnerID == got.B.OwnerID || got.A.LudusID == got.B.LudusID {
			t.Fatalf("n=%d: paired %s and %s from the same owner", n, got.A.GladiatorID, got.B.GladiatorID)
		}
	}
}
