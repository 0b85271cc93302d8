package services

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/internal/coordination"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const acceptanceWindow = 60 * time.Second

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type recordingNotifier struct {
	mu        sync.Mutex
	proposed  []string
	cancelled map[string]string
}

func (n *recordingNotifier) MatchProposed(match *models.Match, _ []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.proposed = append(n.proposed, match.ID)
}

func (n *recordingNotifier) MatchCancelled(match *models.Match, reason string, _ []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancelled == nil {
		n.cancelled = make(map[string]string)
	}
	n.cancelled[match.ID] = reason
}

func (n *recordingNotifier) cancelReason(matchID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cancelled[matchID]
}

type harness struct {
	db           *gorm.DB
	clock        fakeClock
	notifier     *recordingNotifier
	bus          *coordination.LocalLogBus
	orchestrator *Orchestrator
	queue        *QueueService
	acceptance   *AcceptanceService
	matches      *MatchService
}

func newHarness(t *testing.T, opts AcceptanceOptions) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	clock := clockwork.NewFakeClockAt(epoch)
	notifier := &recordingNotifier{}
	bus := coordination.NewLocalLogBus()

	orchestrator := NewOrchestrator(db, coordination.NewLocalLocker(5*time.Second), notifier, clock, acceptanceWindow)
	return &harness{
		db:           db,
		clock:        clock,
		notifier:     notifier,
		bus:          bus,
		orchestrator: orchestrator,
		queue:        NewQueueService(db, orchestrator, clock),
		acceptance:   NewAcceptanceService(db, orchestrator, notifier, bus, clock, opts),
		matches:      NewMatchService(db),
	}
}

func (h *harness) gladiator(t *testing.T, id, owner string, skill int) models.Gladiator {
	t.Helper()
	return testutil.SeedGladiator(t, h.db, models.Gladiator{ID: id, OwnerID: owner, SkillScore: skill})
}

func (h *harness) join(t *testing.T, g models.Gladiator) *JoinResult {
	t.Helper()
	res, err := h.queue.Join(t.Context(), g.OwnerID, JoinRequest{ArenaID: "colosseum", ServerID: "s1", GladiatorID: g.ID})
	require.NoError(t, err)
	return res
}

// pairUp queues two fresh gladiators and returns the proposed match id.
func (h *harness) pairUp(t *testing.T) (string, models.Gladiator, models.Gladiator) {
	t.Helper()
	a := h.gladiator(t, "spartacus", "o1", 1000)
	b := h.gladiator(t, "crixus", "o2", 1005)
	h.join(t, a)
	res := h.join(t, b)
	require.NotNil(t, res.MatchID)
	return *res.MatchID, a, b
}

func (h *harness) match(t *testing.T, id string) models.Match {
	t.Helper()
	var m models.Match
	require.NoError(t, h.db.First(&m, "id = ?", id).Error)
	return m
}

func (h *harness) entry(t *testing.T, gladiatorID string) models.QueueEntry {
	t.Helper()
	var e models.QueueEntry
	require.NoError(t, h.db.Where("gladiator_id = ?", gladiatorID).Order("queued_at DESC").First(&e).Error)
	return e
}
