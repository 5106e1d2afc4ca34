// Package bot is the Telegram driver: it feeds incoming messages through the
// dialogue state machine, runs the analysis pipeline when the dialogue
// completes, and relays progress, the opinion and citation buttons back to
// the chat.
package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"polyagent/internal/agent"
	"polyagent/internal/dialogue"
)

const (
	apologyReply  = "Sorry, something went wrong during the analysis. Please try again later."
	noResultReply = "No result found, please try again"
	sourcesReply  = "📖 Tap to view the sources:"
)

// Sender is the slice of the Telegram API the bot sends through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	agent    *agent.Agent
	sessions *SessionStore

	// One lock per chat: a chat's updates are handled strictly in sequence,
	// while distinct chats run concurrently.
	mu    sync.Mutex
	chats map[int64]*sync.Mutex
}

func New(api *tgbotapi.BotAPI, a *agent.Agent) *Bot {
	return &Bot{
		api:      api,
		sender:   api,
		agent:    a,
		sessions: NewSessionStore(),
		chats:    map[int64]*sync.Mutex{},
	}
}

// Run long-polls Telegram until the update channel closes. Each update is
// handled on its own goroutine so one chat's analysis never blocks another
// chat; the per-chat lock keeps a single chat sequential.
func (b *Bot) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	log.Printf("🚀 @%s is listening for messages", b.api.Self.UserName)

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		go b.handleMessage(update.Message)
	}
}

// SweepSessions drops sessions idle past ttl. Wired to the cron schedule.
func (b *Bot) SweepSessions(ttl time.Duration) {
	if removed := b.sessions.Sweep(ttl); removed > 0 {
		log.Printf("🧹 Swept %d idle sessions", removed)
	}
}

func (b *Bot) chatLock(chatID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock := b.chats[chatID]
	if lock == nil {
		lock = &sync.Mutex{}
		b.chats[chatID] = lock
	}
	return lock
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	// Held across the whole transition and any analysis it triggers, so two
	// updates from one chat can never observe the same session state.
	lock := b.chatLock(msg.Chat.ID)
	lock.Lock()
	defer lock.Unlock()

	sess := b.sessions.Get(msg.Chat.ID)

	var out dialogue.Outcome
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			out = dialogue.Start(sess)
		default:
			b.send(msg.Chat.ID, "Unknown command. Use /start to begin.")
			return
		}
	} else {
		out = dialogue.Handle(sess, msg.Text)
	}

	b.sessions.Put(msg.Chat.ID, out.Session)
	for _, reply := range out.Replies {
		b.send(msg.Chat.ID, reply)
	}

	if out.RunAnalysis {
		b.runAnalysis(msg.Chat.ID, out.Description)
	}
}

func (b *Bot) runAnalysis(chatID int64, description string) {
	log.Printf("🔍 Running analysis for chat %d", chatID)

	result, err := b.agent.Analyze(context.Background(), description, progressSender{bot: b, chatID: chatID})
	if err != nil {
		log.Printf("❌ Analysis failed for chat %d: %v", chatID, err)
		b.send(chatID, apologyReply)
		return
	}

	if result.Content != "" {
		b.send(chatID, result.Content)
	} else {
		b.send(chatID, noResultReply)
	}

	if len(result.Citations) > 0 {
		b.sendWithMarkup(chatID, sourcesReply, CitationKeyboard(result.Citations))
	}
}

// CitationKeyboard renders one URL button per citation, ordinal-labeled, in
// input order.
func CitationKeyboard(citations []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(citations))
	for i, url := range citations {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(fmt.Sprintf("🔗 Source %d", i+1), url),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// progressSender relays analysis progress notices to the chat.
type progressSender struct {
	bot    *Bot
	chatID int64
}

func (p progressSender) Report(message string) error {
	return p.bot.send(p.chatID, message)
}

func (b *Bot) send(chatID int64, text string) error {
	return b.sendWithMarkup(chatID, text, nil)
}

func (b *Bot) sendWithMarkup(chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	_, err := b.sender.Send(msg)
	if err != nil {
		log.Printf("❌ Error sending message: %v", err)
	}
	return err
}
