// Package bot routes Telegram updates to the dispatch and onboarding
// flows.
//
// Updates arrive through the webhook endpoint; callback data uses a
// space-separated "<action> [verb] [argument]" wire format.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ConnectID-SG/connectid/internal/dispatch"
	"github.com/ConnectID-SG/connectid/internal/models"
	"github.com/ConnectID-SG/connectid/internal/notify"
	"github.com/ConnectID-SG/connectid/internal/onboard"
	"github.com/ConnectID-SG/connectid/internal/store"
)

// Dispatcher is the subset of the dispatch controller the router needs.
type Dispatcher interface {
	Acknowledge(ctx context.Context, distressID string) error
	Reject(ctx context.Context, distressID string) error
	ManualAcknowledge(ctx context.Context, distressID, dispatcherUser string) error
	Cancel(ctx context.Context, distressID, dispatcherUser string) error
}

// SignalResolver looks a distress record up by the dispatcher broadcast
// message id. It backs dispatcher controls whose callback payload predates
// the uuid-carrying format.
type SignalResolver interface {
	GetDistressByGroupMessageID(messageID int) (*models.Distress, error)
}

// Onboarder is the subset of the onboarding flow the router needs.
type Onboarder interface {
	Welcome(ctx context.Context, chatID int64) error
	StartOnboarding(ctx context.Context, chatID int64) error
	HandleText(ctx context.Context, chatID int64, text string) (bool, error)
	SetLanguage(ctx context.Context, chatID int64, language string) error
	SetGender(ctx context.Context, chatID int64, gender string) error
	CheckIn(ctx context.Context, chatID int64) error
	CheckOut(ctx context.Context, chatID int64) error
	CompleteCheckIn(ctx context.Context, chatID int64, location models.Location) error
	ShowProfile(ctx context.Context, chatID int64) error
	ListConditions(ctx context.Context, chatID int64) error
	AddCondition(ctx context.Context, chatID int64, condition string) error
	SkipDescription(ctx context.Context, chatID int64) error
	CancelMenu(ctx context.Context, chatID int64) error
}

// Router dispatches decoded Telegram updates.
type Router struct {
	dispatcher Dispatcher
	flow       Onboarder
	signals    SignalResolver
}

// NewRouter creates a router over the given flows.
func NewRouter(d Dispatcher, f Onboarder, signals SignalResolver) (*Router, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher must be provided")
	}
	if f == nil {
		return nil, fmt.Errorf("onboarder must be provided")
	}
	if signals == nil {
		return nil, fmt.Errorf("signal resolver must be provided")
	}
	return &Router{dispatcher: d, flow: f, signals: signals}, nil
}

// HandleUpdate routes one update. Unrecognized updates are logged and
// dropped; routing errors surface to the webhook handler.
func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return r.handleMessage(ctx, update.Message)
	default:
		slog.Debug("Router.HandleUpdate: ignoring unsupported update", "update_id", update.UpdateID)
		return nil
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	if msg.Location != nil {
		return r.flow.CompleteCheckIn(ctx, chatID, models.Location{
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		})
	}
	if msg.IsCommand() {
		if msg.Command() == "start" {
			return r.flow.Welcome(ctx, chatID)
		}
		slog.Debug("Router.handleMessage: ignoring command", "command", msg.Command(), "chat", chatID)
		return nil
	}
	if msg.Text != "" {
		handled, err := r.flow.HandleText(ctx, chatID, msg.Text)
		if err != nil {
			return err
		}
		if !handled {
			slog.Debug("Router.handleMessage: text not consumed", "chat", chatID)
		}
		return nil
	}
	return nil
}

func (r *Router) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil {
		return nil
	}
	chatID := callback.Message.Chat.ID
	action, verb, arg := splitCallbackData(callback.Data)

	switch action {
	case notify.ActionOnboard:
		return r.flow.StartOnboarding(ctx, chatID)
	case notify.ActionCheckIn:
		return r.flow.CheckIn(ctx, chatID)
	case notify.ActionCheckOut:
		return r.flow.CheckOut(ctx, chatID)
	case notify.ActionProfile:
		return r.flow.ShowProfile(ctx, chatID)
	case notify.ActionCancel:
		return r.flow.CancelMenu(ctx, chatID)
	case notify.ActionLanguage:
		return r.flow.SetLanguage(ctx, chatID, verb)
	case notify.ActionGender:
		return r.flow.SetGender(ctx, chatID, verb)
	case notify.ActionOption:
		switch verb {
		case notify.VerbOptionAdd:
			if arg == "" {
				return r.flow.ListConditions(ctx, chatID)
			}
			return r.flow.AddCondition(ctx, chatID, arg)
		case notify.VerbOptionSkip:
			return r.flow.SkipDescription(ctx, chatID)
		}
	case notify.ActionDistress:
		switch verb {
		case notify.VerbAccept:
			return r.dispatcher.Acknowledge(ctx, arg)
		case notify.VerbDecline:
			return r.dispatcher.Reject(ctx, arg)
		}
	case notify.ActionDispatch:
		switch verb {
		case notify.VerbAccept, notify.VerbDecline:
			id := arg
			if id == "" {
				// Older broadcast buttons carried no signal id; the
				// broadcast message itself identifies the record.
				distress, err := r.signals.GetDistressByGroupMessageID(callback.Message.MessageID)
				if err != nil {
					return fmt.Errorf("failed to resolve signal for message %d: %w", callback.Message.MessageID, err)
				}
				id = distress.ID
			}
			user := dispatcherUser(callback)
			if verb == notify.VerbAccept {
				return r.dispatcher.ManualAcknowledge(ctx, id, user)
			}
			return r.dispatcher.Cancel(ctx, id, user)
		}
	}

	slog.Warn("Router.handleCallback: unrecognized callback", "data", callback.Data, "chat", chatID)
	return nil
}

// splitCallbackData splits "<action> [verb] [argument]" where the argument
// may itself contain spaces (condition names do).
func splitCallbackData(data string) (action, verb, arg string) {
	parts := strings.SplitN(data, " ", 3)
	action = parts[0]
	if len(parts) > 1 {
		verb = parts[1]
	}
	if len(parts) > 2 {
		arg = parts[2]
	}
	return action, verb, arg
}

func dispatcherUser(callback *tgbotapi.CallbackQuery) string {
	if callback.From != nil && callback.From.UserName != "" {
		return callback.From.UserName
	}
	return "dispatcher"
}

var _ Dispatcher = (*dispatch.Controller)(nil)
var _ Onboarder = (*onboard.Flow)(nil)
var _ SignalResolver = store.Store(nil)
