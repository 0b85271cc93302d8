package telegram

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/internal/services"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
)

// Sender is the part of *tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MatchResponder answers match proposals on behalf of an owner.
type MatchResponder interface {
	Accept(ctx context.Context, matchID, ownerID string) (*services.AcceptResult, error)
	Decline(ctx context.Context, matchID, ownerID string) (*services.DeclineResult, error)
}

// LinkCodeIssuer hands out the one-time codes owners use to link a chat.
type LinkCodeIssuer interface {
	IssueLinkCode(ctx context.Context, chatID int64) (string, time.Time, error)
}

type outgoing struct {
	ownerID  string
	text     string
	keyboard interface{}
}

// Bot delivers match notifications to owners and turns inline button presses
// back into accept and decline calls.
type Bot struct {
	api       Sender
	contacts  *repositories.ContactRepository
	responder MatchResponder
	links     LinkCodeIssuer
	window    time.Duration

	// Hashed by owner so one owner's messages keep their order.
	workerChans []chan outgoing
	wg          sync.WaitGroup
	mu          sync.RWMutex
	stopped     bool
}

func NewBot(api Sender, contacts *repositories.ContactRepository, responder MatchResponder, links LinkCodeIssuer, window time.Duration, workers int) *Bot {
	if workers <= 0 {
		workers = 4
	}

	b := &Bot{
		api:         api,
		contacts:    contacts,
		responder:   responder,
		links:       links,
		window:      window,
		workerChans: make([]chan outgoing, workers),
	}
	for i := range b.workerChans {
		b.workerChans[i] = make(chan outgoing, 100)
		b.wg.Add(1)
		go b.startWorker(b.workerChans[i])
	}
	return b
}

// InitBot authorises against the Telegram API.
func InitBot(token, appEnv string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if appEnv == "development" {
		api.Debug = true
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)
	return api, nil
}

func (b *Bot) MatchProposed(match *models.Match, ownerIDs []string) {
	deadline := b.window
	if match.AcceptanceDeadline != nil {
		deadline = match.AcceptanceDeadline.Sub(match.MatchedAt)
	}
	text := fmt.Sprintf("⚔️ <b>An opponent awaits in arena %s.</b>\nAnswer within %d seconds.",
		match.ArenaID, int(deadline.Seconds()))

	for _, ownerID := range ownerIDs {
		b.enqueue(outgoing{ownerID: ownerID, text: text, keyboard: MatchOfferKeyboard(match.ID)})
	}
}

func (b *Bot) MatchCancelled(match *models.Match, reason string, ownerIDs []string) {
	var text string
	switch reason {
	case services.CancelReasonDeclined:
		text = fmt.Sprintf("🏳️ The match in arena %s was declined.", match.ArenaID)
	case services.CancelReasonTimeout:
		text = fmt.Sprintf("⌛ The match offer in arena %s expired. Queue again when ready.", match.ArenaID)
	default:
		text = fmt.Sprintf("The match in arena %s was cancelled.", match.ArenaID)
	}

	for _, ownerID := range ownerIDs {
		b.enqueue(outgoing{ownerID: ownerID, text: text})
	}
}

func (b *Bot) enqueue(msg outgoing) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(msg.ownerID))
	ch := b.workerChans[h.Sum32()%uint32(len(b.workerChans))]

	select {
	case ch <- msg:
	default:
		logger.Warn("Notification queue full, dropping message", "owner_id", msg.ownerID)
	}
}

func (b *Bot) startWorker(ch chan outgoing) {
	defer b.wg.Done()
	for msg := range ch {
		b.deliver(msg)
	}
}

func (b *Bot) deliver(msg outgoing) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chatID, ok, err := b.contacts.TelegramChatID(ctx, msg.ownerID)
	if err != nil {
		logger.Error("Failed to look up owner chat", "owner_id", msg.ownerID, "error", err)
		return
	}
	if !ok {
		logger.Debug("Owner has no Telegram chat linked", "owner_id", msg.ownerID)
		return
	}
	b.sendMessage(chatID, msg.text, msg.keyboard)
}

func (b *Bot) sendMessage(chatID int64, text string, keyboard interface{}) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if kb, ok := keyboard.(tgbotapi.InlineKeyboardMarkup); ok {
		msg.ReplyMarkup = kb
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		sentMsg, err := b.api.Send(msg)
		if err != nil {
			logger.Error("Failed to send message", "error", err, "chat_id", chatID, "attempt", i+1)

			if strings.Contains(err.Error(), "connection reset") ||
				strings.Contains(err.Error(), "timeout") ||
				strings.Contains(err.Error(), "network is unreachable") {
				time.Sleep(time.Duration(i+1) * time.Second)
				continue
			}
			return 0
		}
		return sentMsg.MessageID
	}
	return 0
}

// Listen handles updates until ctx is done or the channel closes.
func (b *Bot) Listen(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start", "link":
		code, expiresAt, err := b.links.IssueLinkCode(ctx, message.Chat.ID)
		if err != nil {
			logger.Error("Failed to issue link code", "chat_id", message.Chat.ID, "error", err)
			b.sendMessage(message.Chat.ID, "Something went wrong, try /start again.", nil)
			return
		}
		b.sendMessage(message.Chat.ID,
			fmt.Sprintf("Your link code is <code>%s</code>. Submit it from your ludus before %s to receive match offers here.",
				code, expiresAt.UTC().Format("15:04 UTC")), nil)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	var chatID int64
	switch {
	case query.Message != nil && query.Message.Chat != nil:
		chatID = query.Message.Chat.ID
	case query.From != nil:
		chatID = query.From.ID
	default:
		return
	}

	ownerID, ok, err := b.contacts.OwnerByChatID(ctx, chatID)
	if err != nil {
		logger.Error("Failed to resolve chat owner", "chat_id", chatID, "error", err)
		b.answerCallback(query.ID, "Something went wrong, try again.")
		return
	}
	if !ok {
		b.answerCallback(query.ID, "This chat is not linked to a ludus.")
		return
	}

	var text string
	switch {
	case strings.HasPrefix(query.Data, CallbackAccept):
		res, err := b.responder.Accept(ctx, strings.TrimPrefix(query.Data, CallbackAccept), ownerID)
		switch {
		case err != nil:
			text = callbackErrorText(err)
		case res.BothAccepted:
			text = "Both sides accepted. To the sands!"
		default:
			text = "Accepted. Waiting for your opponent."
		}
	case strings.HasPrefix(query.Data, CallbackDecline):
		if _, err := b.responder.Decline(ctx, strings.TrimPrefix(query.Data, CallbackDecline), ownerID); err != nil {
			text = callbackErrorText(err)
		} else {
			text = "Match declined."
		}
	default:
		return
	}

	b.answerCallback(query.ID, text)
}

func callbackErrorText(err error) string {
	switch errors.CodeOf(err) {
	case errors.ErrCodeAcceptanceExpired:
		return "This offer has expired."
	case errors.ErrCodeAlreadyResolved:
		return "This match is already settled."
	case errors.ErrCodeMatchNotFound:
		return "Match not found."
	case errors.ErrCodeNotParticipant:
		return "You are not part of this match."
	default:
		logger.Error("Callback action failed", "error", err)
		return "Something went wrong, try again."
	}
}

func (b *Bot) answerCallback(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		logger.Warn("Failed to answer callback", "error", err)
	}
}

// Stop drains pending notifications and stops the workers.
func (b *Bot) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	for _, ch := range b.workerChans {
		close(ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
}
