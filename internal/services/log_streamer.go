package services

import (
	"context"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/internal/coordination"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/internal/security"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
	"gorm.io/gorm"
)

type EventType string

const (
	EventLog      EventType = "log"
	EventComplete EventType = "complete"
	EventPing     EventType = "ping"
	EventError    EventType = "error"
)

// Event is one frame of a match log stream. ID is set for log events only.
type Event struct {
	Type EventType
	ID   string
	Data interface{}
}

type LogEventData struct {
	ActionNumber int       `json:"action_number"`
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	HealthA      *int      `json:"health_a,omitempty"`
	HealthB      *int      `json:"health_b,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type CompleteEventData struct {
	WinnerID     *string `json:"winner_id"`
	WinnerMethod *string `json:"winner_method"`
}

type PingEventData struct {
	Time time.Time `json:"time"`
}

type ErrorEventData struct {
	Message string `json:"message"`
}

// LogStreamer replays a match's combat log and then tails it until the match
// completes or is cancelled.
type LogStreamer struct {
	logs         *repositories.CombatLogRepository
	matches      *repositories.MatchRepository
	bus          coordination.LogBus
	clock        clockwork.Clock
	pollInterval time.Duration
	pingInterval time.Duration
}

// NewLogStreamer builds a streamer. bus may be nil, in which case streams
// rely on polling alone.
func NewLogStreamer(db *gorm.DB, bus coordination.LogBus, clock clockwork.Clock, pollInterval, pingInterval time.Duration) *LogStreamer {
	return &LogStreamer{
		logs:         repositories.NewCombatLogRepository(db),
		matches:      repositories.NewMatchRepository(db),
		bus:          bus,
		clock:        clock,
		pollInterval: pollInterval,
		pingInterval: pingInterval,
	}
}

// Stream delivers events for matchID through emit, in ascending action order
// and without duplicates. It returns nil after a terminal event, the emit
// error when the client goes away, or ctx.Err() on cancellation.
func (s *LogStreamer) Stream(ctx context.Context, matchID string, emit func(Event) error) error {
	session := &streamSession{streamer: s, matchID: matchID, emit: emit, watermark: -1}

	var hints <-chan struct{}
	if s.bus != nil {
		sub, err := s.bus.Subscribe(ctx, matchID)
		if err != nil {
			logger.Warn("Log bus unavailable, polling only", "match_id", matchID, "error", err)
		} else {
			defer sub.Close()
			hints = sub.C()
		}
	}

	poll := s.clock.NewTicker(s.pollInterval)
	defer poll.Stop()
	ping := s.clock.NewTicker(s.pingInterval)
	defer ping.Stop()

	if done, err := session.step(ctx); done {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.Chan():
			if err := emit(Event{Type: EventPing, Data: PingEventData{Time: s.clock.Now().UTC()}}); err != nil {
				return err
			}
			continue
		case <-poll.Chan():
		case <-hints:
		}

		if done, err := session.step(ctx); done {
			return err
		}
	}
}

type streamSession struct {
	streamer  *LogStreamer
	matchID   string
	emit      func(Event) error
	watermark int
}

// step reads the match status first and the log second, so rows written
// before a terminal status change are always delivered ahead of it.
func (ss *streamSession) step(ctx context.Context) (bool, error) {
	match, err := ss.streamer.matches.GetByID(ctx, ss.matchID)
	if err != nil {
		return true, ss.fail(ctx, err)
	}

	entries, err := ss.streamer.logs.ListAfter(ctx, ss.matchID, ss.watermark)
	if err != nil {
		return true, ss.fail(ctx, err)
	}
	for _, e := range entries {
		if err := ss.emit(logEvent(e)); err != nil {
			return true, err
		}
		ss.watermark = e.ActionNumber
	}

	switch match.Status {
	case models.MatchStatusCompleted:
		return true, ss.emit(Event{Type: EventComplete, Data: CompleteEventData{
			WinnerID:     match.WinnerID,
			WinnerMethod: match.WinnerMethod,
		}})
	case models.MatchStatusCancelled:
		return true, ss.emit(Event{Type: EventError, Data: ErrorEventData{Message: "match cancelled"}})
	}
	return false, nil
}

func (ss *streamSession) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	message := "failed to read match log"
	if errors.Is(err, errors.ErrCodeMatchNotFound) {
		message = "match not found"
	} else {
		logger.Error("Log stream fetch failed", "match_id", ss.matchID, "error", err)
	}
	return ss.emit(Event{Type: EventError, Data: ErrorEventData{Message: message}})
}

func logEvent(e models.CombatLogEntry) Event {
	return Event{
		Type: EventLog,
		ID:   strconv.Itoa(e.ActionNumber),
		Data: LogEventData{
			ActionNumber: e.ActionNumber,
			Type:         e.Type,
			Message:      security.SanitizeHTML(e.Message),
			HealthA:      e.HealthA,
			HealthB:      e.HealthB,
			CreatedAt:    e.CreatedAt,
		},
	}
}
