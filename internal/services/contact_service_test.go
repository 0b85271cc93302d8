package services

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/internal/testutil"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContactService(t *testing.T) (*ContactService, *repositories.ContactRepository, fakeClock) {
	t.Helper()
	db := testutil.NewDB(t)
	clock := clockwork.NewFakeClockAt(epoch)
	return NewContactService(db, clock), repositories.NewContactRepository(db), clock
}

func TestContactService_IssueAndLink(t *testing.T) {
	svc, contacts, _ := newContactService(t)
	ctx := t.Context()

	code, expiresAt, err := svc.IssueLinkCode(ctx, 4242)
	require.NoError(t, err)
	assert.Len(t, code, LinkCodeLength)
	assert.Equal(t, epoch.Add(LinkCodeTTL), expiresAt)

	contact, err := svc.Link(ctx, "o1", " "+code+" ")
	require.NoError(t, err)
	assert.Equal(t, int64(4242), contact.TelegramChatID)

	chatID, ok, err := contacts.TelegramChatID(ctx, "o1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4242), chatID)

	// Codes are single use.
	_, err = svc.Link(ctx, "o1", code)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)
}

func TestContactService_LinkRejectsUnknownAndExpiredCodes(t *testing.T) {
	svc, contacts, clock := newContactService(t)
	ctx := t.Context()

	_, err := svc.Link(ctx, "o1", "")
	assert.True(t, errors.Is(err, errors.ErrCodeValidation), "got %v", err)

	_, err = svc.Link(ctx, "o1", "NOSUCHCD")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)

	code, _, err := svc.IssueLinkCode(ctx, 4242)
	require.NoError(t, err)
	clock.Advance(LinkCodeTTL)

	_, err = svc.Link(ctx, "o1", code)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation), "got %v", err)

	_, ok, err := contacts.TelegramChatID(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContactService_LinkRejectsChatOwnedByAnother(t *testing.T) {
	svc, contacts, _ := newContactService(t)
	ctx := t.Context()

	first, _, err := svc.IssueLinkCode(ctx, 4242)
	require.NoError(t, err)
	_, err = svc.Link(ctx, "o1", first)
	require.NoError(t, err)

	second, _, err := svc.IssueLinkCode(ctx, 4242)
	require.NoError(t, err)
	_, err = svc.Link(ctx, "o2", second)
	assert.True(t, errors.Is(err, errors.ErrCodeConflict), "got %v", err)

	owner, ok, err := contacts.OwnerByChatID(ctx, 4242)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "o1", owner)

	// The rejected code was still spent.
	_, err = svc.Link(ctx, "o2", second)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)

	// The owner of the chat may relink it.
	third, _, err := svc.IssueLinkCode(ctx, 4242)
	require.NoError(t, err)
	_, err = svc.Link(ctx, "o1", third)
	require.NoError(t, err)
}

func TestContactService_IssueReplacesOutstandingCode(t *testing.T) {
	svc, _, clock := newContactService(t)
	ctx := t.Context()

	old, _, err := svc.IssueLinkCode(ctx, 4242)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	fresh, _, err := svc.IssueLinkCode(ctx, 4242)
	require.NoError(t, err)

	_, err = svc.Link(ctx, "o1", old)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)
	_, err = svc.Link(ctx, "o1", fresh)
	require.NoError(t, err)
}
