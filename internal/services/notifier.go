package services

import "github.com/mroshb/ludus_arena/internal/models"

// MatchNotifier tells owners about match proposals and cancellations.
// Implementations must not block the caller.
type MatchNotifier interface {
	MatchProposed(match *models.Match, ownerIDs []string)
	MatchCancelled(match *models.Match, reason string, ownerIDs []string)
}

// Cancellation reasons passed to MatchNotifier.MatchCancelled.
const (
	CancelReasonDeclined = "declined"
	CancelReasonTimeout  = "timeout"
	CancelReasonOrphaned = "orphaned"
)

type nopNotifier struct{}

func (nopNotifier) MatchProposed(*models.Match, []string)          {}
func (nopNotifier) MatchCancelled(*models.Match, string, []string) {}

// NopNotifier discards every notification.
func NopNotifier() MatchNotifier { return nopNotifier{} }
