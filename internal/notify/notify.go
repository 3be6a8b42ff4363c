// Package notify forwards server events to a Telegram chat.
package notify

import (
	"context"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/message"

	"protonmc/internal/logging"
	"protonmc/internal/minecraft"
	"protonmc/internal/model"
)

// Mode selects which event groups are forwarded.
type Mode int

const (
	ModeServerEvents Mode = 1 << iota
	ModePlayerConnections
	ModePlayerOther

	ModeAll = ModeServerEvents | ModePlayerConnections | ModePlayerOther
)

// Sender delivers one text message.
type Sender interface {
	Send(text string) error
}

// TelegramSender posts to a fixed chat through the Bot API.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender authenticates the bot token against Telegram.
func NewTelegramSender(token string, chatID int64, client *http.Client) (*TelegramSender, error) {
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

func (t *TelegramSender) Send(text string) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text))
	return err
}

const queueSize = 64

// Notifier turns server events into localised messages. It implements minecraft.Sink.
type Notifier struct {
	sender  Sender
	mode    Mode
	printer *message.Printer
	log     *logging.Logger
	queue   chan string

	mu   sync.Mutex
	last map[string]model.ServerState
}

// New creates a Notifier. Call Run to start delivering.
func New(sender Sender, mode Mode, lang string, log *logging.Logger) *Notifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Notifier{
		sender:  sender,
		mode:    mode,
		printer: NewPrinter(lang),
		log:     log.With("component", "notify"),
		queue:   make(chan string, queueSize),
		last:    map[string]model.ServerState{},
	}
}

// Run delivers queued messages until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			if err := n.sender.Send(text); err != nil {
				n.log.Warn("notify_send_failed", "error", err)
			}
		}
	}
}

// HandleEvent queues a message for e when its group is enabled. A full queue drops the message.
func (n *Notifier) HandleEvent(e minecraft.Event) {
	text, ok := n.Format(e)
	if !ok {
		return
	}
	select {
	case n.queue <- text:
	default:
		n.log.Warn("notify_queue_full", "server", e.Server)
	}
}

// Format renders e, reporting false when the event is filtered out.
func (n *Notifier) Format(e minecraft.Event) (string, bool) {
	switch e.Type {
	case minecraft.EventState:
		prev := n.swapState(e.Server, e.State)
		if n.mode&ModeServerEvents == 0 {
			return "", false
		}
		switch e.State {
		case model.StateStarting:
			return n.printer.Sprintf(keyServerStarting, e.Server), true
		case model.StateRunning:
			return n.printer.Sprintf(keyServerStarted, e.Server), true
		case model.StateStopped:
			if prev == model.StateStarting || prev == model.StateRunning {
				return n.printer.Sprintf(keyServerStopped, e.Server), true
			}
		}
	case minecraft.EventPlayerJoin:
		if n.mode&ModePlayerConnections != 0 {
			return n.printer.Sprintf(keyPlayerJoin, e.Player), true
		}
	case minecraft.EventPlayerLeave:
		if n.mode&ModePlayerConnections != 0 {
			return n.printer.Sprintf(keyPlayerLeave, e.Player), true
		}
	case minecraft.EventAchievement:
		if n.mode&ModePlayerOther != 0 {
			return n.printer.Sprintf(keyAchievement, e.Player, e.Detail), true
		}
	}
	return "", false
}

func (n *Notifier) swapState(server string, state model.ServerState) model.ServerState {
	n.mu.Lock()
	defer n.mu.Unlock()
	prev := n.last[server]
	n.last[server] = state
	return prev
}
