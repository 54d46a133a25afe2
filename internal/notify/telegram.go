package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Opts holds configuration options for the Telegram notifier.
type Opts struct {
	Token          string
	DispatchChatID int64
	Debug          bool
}

// Option defines a configuration option for the Telegram notifier.
type Option func(*Opts)

// WithToken sets the bot API token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithDispatchChatID sets the dispatcher group chat id.
func WithDispatchChatID(chatID int64) Option {
	return func(o *Opts) { o.DispatchChatID = chatID }
}

// WithDebug enables verbose Bot API logging.
func WithDebug(debug bool) Option {
	return func(o *Opts) { o.Debug = debug }
}

// TelegramNotifier implements Notifier on top of the Telegram Bot API.
// All outgoing messages use HTML parse mode.
type TelegramNotifier struct {
	bot            *tgbotapi.BotAPI
	dispatchChatID int64
}

// NewTelegramNotifier creates a notifier with the given options.
func NewTelegramNotifier(opts ...Option) (*TelegramNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token must be provided")
	}
	if cfg.DispatchChatID == 0 {
		return nil, fmt.Errorf("dispatch chat id must be provided")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	slog.Info("TelegramNotifier initialized", "username", bot.Self.UserName, "dispatch_chat", cfg.DispatchChatID)

	return &TelegramNotifier{bot: bot, dispatchChatID: cfg.DispatchChatID}, nil
}

// Bot exposes the underlying client for webhook update decoding.
func (n *TelegramNotifier) Bot() *tgbotapi.BotAPI {
	return n.bot
}

// DispatchChannelID returns the dispatcher group chat id.
func (n *TelegramNotifier) DispatchChannelID() int64 {
	return n.dispatchChatID
}

func (n *TelegramNotifier) SendToResponder(ctx context.Context, chatID int64, text string, controls []ControlRow) (int, error) {
	return n.send(ctx, chatID, text, controls)
}

func (n *TelegramNotifier) SendToDispatchChannel(ctx context.Context, text string, controls []ControlRow) (int, error) {
	return n.send(ctx, n.dispatchChatID, text, controls)
}

func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string, controls []ControlRow) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup, ok := inlineKeyboard(controls); ok {
		msg.ReplyMarkup = markup
	}
	sent, err := n.bot.Send(msg)
	if err != nil {
		slog.Error("TelegramNotifier.send: send failed", "error", err, "chat", chatID)
		return 0, fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	slog.Debug("TelegramNotifier.send: message sent", "chat", chatID, "message_id", sent.MessageID)
	return sent.MessageID, nil
}

func (n *TelegramNotifier) EditMessage(ctx context.Context, chatID int64, messageID int, text string, controls []ControlRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if markup, ok := inlineKeyboard(controls); ok {
		edit.ReplyMarkup = &markup
	}
	if _, err := n.bot.Send(edit); err != nil {
		slog.Error("TelegramNotifier.EditMessage: edit failed", "error", err, "chat", chatID, "message_id", messageID)
		return fmt.Errorf("failed to edit message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

func (n *TelegramNotifier) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		slog.Error("TelegramNotifier.DeleteMessage: delete failed", "error", err, "chat", chatID, "message_id", messageID)
		return fmt.Errorf("failed to delete message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

func (n *TelegramNotifier) SendLocationRequest(ctx context.Context, chatID int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	button := tgbotapi.NewKeyboardButtonLocation("Send location")
	keyboard := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(button))
	keyboard.OneTimeKeyboard = true
	msg.ReplyMarkup = keyboard

	sent, err := n.bot.Send(msg)
	if err != nil {
		slog.Error("TelegramNotifier.SendLocationRequest: send failed", "error", err, "chat", chatID)
		return 0, fmt.Errorf("failed to send location request to chat %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// inlineKeyboard converts control rows to a Telegram inline keyboard.
// The second return value is false when there are no controls to attach.
func inlineKeyboard(controls []ControlRow) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(controls) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(controls))
	for _, row := range controls {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
