// Package onboard implements the responder onboarding form, the welcome
// menu, check-in/check-out and the profile flows.
//
// Every flow renders into a single editable message slot per responder
// chat, tracked by the responder's last_message_id.
package onboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ConnectID-SG/connectid/internal/models"
	"github.com/ConnectID-SG/connectid/internal/notify"
	"github.com/ConnectID-SG/connectid/internal/store"
)

// Languages a responder can declare during onboarding.
var Languages = []string{"Chinese", "English", "Malay"}

// MedicalConditions lists the condition tags a responder can claim
// experience with.
var MedicalConditions = []string{
	"Fragile X syndrome",
	"Down syndrome",
	"Developmental delay",
	"Prader-Willi Syndrome (PWS)",
	"Fetal alcohol spectrum disorder (FASD)",
}

// Opts holds configuration options for the flow.
type Opts struct {
	Store  store.Store
	Notify notify.Notifier
	Now    func() time.Time
}

// Option defines a configuration option for the flow.
type Option func(*Opts)

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithNotifier sets the chat notification layer.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Opts) { o.Notify = n }
}

// WithClock overrides the time source (used by tests).
func WithClock(fn func() time.Time) Option {
	return func(o *Opts) { o.Now = fn }
}

// Flow drives responder onboarding and profile maintenance.
type Flow struct {
	store  store.Store
	notify notify.Notifier
	now    func() time.Time
}

// NewFlow creates a flow with the given options.
func NewFlow(opts ...Option) (*Flow, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store must be provided")
	}
	if cfg.Notify == nil {
		return nil, fmt.Errorf("notifier must be provided")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Flow{store: cfg.Store, notify: cfg.Notify, now: cfg.Now}, nil
}

// Welcome puts the welcome menu into a chat. Repeated /start commands from
// a responder who already has a menu slot are ignored.
func (f *Flow) Welcome(ctx context.Context, chatID int64) error {
	responder, err := f.store.GetResponder(chatID)
	isOnboarded := err == nil && responder.State == models.StateNoop
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	if responder != nil && responder.LastMessageID != models.NoMessageID {
		return nil
	}

	isAvailable := responder != nil && responder.IsAvailable
	messageID, err := f.notify.SendToResponder(ctx, chatID, notify.WelcomeText,
		notify.WelcomeControls(isOnboarded, isAvailable))
	if err != nil {
		return fmt.Errorf("failed to send welcome menu: %w", err)
	}

	if responder != nil {
		responder.LastMessageID = messageID
		if err := f.store.UpdateResponder(*responder); err != nil {
			return fmt.Errorf("failed to save menu slot: %w", err)
		}
	}
	return nil
}

// refreshWelcome rewrites the responder's menu slot in place.
func (f *Flow) refreshWelcome(ctx context.Context, r *models.Responder) error {
	if r.LastMessageID == models.NoMessageID {
		return f.Welcome(ctx, r.ID)
	}
	return f.notify.EditMessage(ctx, r.ID, r.LastMessageID, notify.WelcomeText,
		notify.WelcomeControls(r.State == models.StateNoop, r.IsAvailable))
}

// StartOnboarding creates the responder record and asks for their name.
func (f *Flow) StartOnboarding(ctx context.Context, chatID int64) error {
	responder := models.Responder{
		ID:            chatID,
		State:         models.StateName,
		LastMessageID: models.NoMessageID,
	}
	if err := f.store.CreateResponder(responder); err != nil {
		return fmt.Errorf("failed to create responder %d: %w", chatID, err)
	}

	messageID, err := f.notify.SendToResponder(ctx, chatID,
		notify.OnboardStepText(int(responder.State), "Kindly enter your full name"), nil)
	if err != nil {
		return fmt.Errorf("failed to send onboarding prompt: %w", err)
	}
	responder.LastMessageID = messageID
	if err := f.store.UpdateResponder(responder); err != nil {
		return fmt.Errorf("failed to save menu slot: %w", err)
	}
	slog.Info("Flow.StartOnboarding: onboarding started", "responder", chatID)
	return nil
}

// HandleText routes a free-text message by the responder's current state.
// The bool result reports whether the message was consumed.
func (f *Flow) HandleText(ctx context.Context, chatID int64, text string) (bool, error) {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	if text == "" {
		return false, nil
	}

	switch responder.State {
	case models.StateName:
		responder.Name = text
		responder.State = models.StateLanguage
		return true, f.advance(ctx, responder, "Kindly pick your language",
			notify.LanguageControls(Languages))
	case models.StatePhoneNumber:
		responder.PhoneNumber = text
		responder.State = models.StateNRIC
		return true, f.advance(ctx, responder, "Kindly provide your NRIC", nil)
	case models.StateNRIC:
		responder.NRIC = text
		responder.State = models.StateAddress
		return true, f.advance(ctx, responder, "Kindly provide your address", nil)
	case models.StateAddress:
		responder.Address = text
		responder.State = models.StateDateOfBirth
		return true, f.advance(ctx, responder, "Kindly provide your date of birth (YYYY-MM-DD)", nil)
	case models.StateDateOfBirth:
		if _, err := time.Parse("2006-01-02", text); err != nil {
			return true, f.advance(ctx, responder, "That date was not recognized. Kindly provide your date of birth as YYYY-MM-DD", nil)
		}
		responder.DateOfBirth = text
		responder.State = models.StateGender
		return true, f.advance(ctx, responder, "Kindly select your gender",
			notify.GenderControls())
	case models.StateMedicalKnowledge:
		return true, f.describeLatestCondition(ctx, responder, text)
	default:
		return false, nil
	}
}

// advance persists the responder and rewrites the form message with the
// next prompt.
func (f *Flow) advance(ctx context.Context, r *models.Responder, prompt string, controls []notify.ControlRow) error {
	if err := f.store.UpdateResponder(*r); err != nil {
		return fmt.Errorf("failed to save onboarding step: %w", err)
	}
	text := notify.OnboardStepText(int(r.State), prompt)
	if err := f.notify.EditMessage(ctx, r.ID, r.LastMessageID, text, controls); err != nil {
		return fmt.Errorf("failed to update onboarding prompt: %w", err)
	}
	return nil
}

// SetLanguage records the language selection and moves to the phone step.
func (f *Flow) SetLanguage(ctx context.Context, chatID int64, language string) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	if responder.State != models.StateLanguage {
		return nil
	}
	responder.Languages = []string{language}
	responder.State = models.StatePhoneNumber
	return f.advance(ctx, responder, "Kindly provide your phone number", nil)
}

// SetGender records the gender selection and completes onboarding.
func (f *Flow) SetGender(ctx context.Context, chatID int64, gender string) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	if responder.State != models.StateGender {
		return nil
	}
	responder.Gender = gender
	responder.State = models.StateNoop
	if err := f.store.UpdateResponder(*responder); err != nil {
		return fmt.Errorf("failed to save responder: %w", err)
	}

	done := "You've successfully onboarded to <b><i>ConnectID</i></b>, kindly head over to your profile to add any existing medical experience!"
	if err := f.notify.EditMessage(ctx, responder.ID, responder.LastMessageID, done, nil); err != nil {
		slog.Warn("Flow.SetGender: completion notice failed", "error", err, "responder", chatID)
	}
	slog.Info("Flow.SetGender: onboarding completed", "responder", chatID)
	return f.refreshWelcome(ctx, responder)
}

// CheckIn asks the responder for a location fix. Availability flips only
// once the location message arrives.
func (f *Flow) CheckIn(ctx context.Context, chatID int64) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}

	// The reply keyboard cannot be attached to an edited message, so the
	// menu message is replaced.
	if responder.LastMessageID != models.NoMessageID {
		if err := f.notify.DeleteMessage(ctx, chatID, responder.LastMessageID); err != nil {
			slog.Warn("Flow.CheckIn: menu cleanup failed", "error", err, "responder", chatID)
		}
	}
	messageID, err := f.notify.SendLocationRequest(ctx, chatID, notify.LocationRequestText)
	if err != nil {
		return fmt.Errorf("failed to request location: %w", err)
	}
	responder.LastMessageID = messageID
	if err := f.store.UpdateResponder(*responder); err != nil {
		return fmt.Errorf("failed to save menu slot: %w", err)
	}
	return nil
}

// CompleteCheckIn stores the location fix and marks the responder
// available.
func (f *Flow) CompleteCheckIn(ctx context.Context, chatID int64, location models.Location) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	responder.IsAvailable = true
	responder.Location = location
	if err := f.store.UpdateResponder(*responder); err != nil {
		return fmt.Errorf("failed to save check-in: %w", err)
	}

	// The location request message cannot be edited into the menu, replace
	// it with a fresh one.
	if responder.LastMessageID != models.NoMessageID {
		if err := f.notify.DeleteMessage(ctx, chatID, responder.LastMessageID); err != nil {
			slog.Warn("Flow.CompleteCheckIn: prompt cleanup failed", "error", err, "responder", chatID)
		}
	}
	messageID, err := f.notify.SendToResponder(ctx, chatID, notify.CheckInOutText(true), nil)
	if err != nil {
		return fmt.Errorf("failed to confirm check-in: %w", err)
	}
	responder.LastMessageID = messageID
	if err := f.store.UpdateResponder(*responder); err != nil {
		return fmt.Errorf("failed to save menu slot: %w", err)
	}
	slog.Info("Flow.CompleteCheckIn: responder checked in", "responder", chatID)
	return f.notify.EditMessage(ctx, chatID, messageID, notify.WelcomeText,
		notify.WelcomeControls(responder.State == models.StateNoop, true))
}

// CheckOut marks the responder unavailable. The last known location is
// retained.
func (f *Flow) CheckOut(ctx context.Context, chatID int64) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	responder.IsAvailable = false
	if err := f.store.UpdateResponder(*responder); err != nil {
		return fmt.Errorf("failed to save check-out: %w", err)
	}
	slog.Info("Flow.CheckOut: responder checked out", "responder", chatID)
	return f.refreshWelcome(ctx, responder)
}

// ShowProfile rewrites the menu slot with the responder's profile.
func (f *Flow) ShowProfile(ctx context.Context, chatID int64) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	return f.notify.EditMessage(ctx, chatID, responder.LastMessageID,
		notify.ProfileText(*responder), notify.ProfileControls())
}

// ListConditions offers the conditions the responder has not yet claimed.
func (f *Flow) ListConditions(ctx context.Context, chatID int64) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}

	options := make([]string, 0, len(MedicalConditions))
	for _, condition := range MedicalConditions {
		if !responder.HasCondition(condition) {
			options = append(options, condition)
		}
	}
	if len(options) == 0 {
		_, err := f.notify.SendToResponder(ctx, chatID, notify.AllConditionsText, nil)
		return err
	}
	return f.notify.EditMessage(ctx, chatID, responder.LastMessageID,
		notify.ConditionPickText, notify.ConditionControls(options))
}

// AddCondition appends a condition and asks for its optional description.
func (f *Flow) AddCondition(ctx context.Context, chatID int64, condition string) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	responder.MedicalKnowledge = append(responder.MedicalKnowledge, models.MedicalKnowledge{
		Condition: condition,
		CreatedAt: f.now(),
	})
	responder.State = models.StateMedicalKnowledge
	if err := f.store.UpdateResponder(*responder); err != nil {
		return fmt.Errorf("failed to save condition: %w", err)
	}
	return f.notify.EditMessage(ctx, chatID, responder.LastMessageID,
		notify.ConditionDescriptionText(condition), notify.SkipControls())
}

// SkipDescription finishes the add-condition flow without a description.
func (f *Flow) SkipDescription(ctx context.Context, chatID int64) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	responder.State = models.StateNoop
	if err := f.store.UpdateResponder(*responder); err != nil {
		return fmt.Errorf("failed to save responder: %w", err)
	}
	if err := f.notify.EditMessage(ctx, chatID, responder.LastMessageID, notify.ProfileUpdatedText, nil); err != nil {
		slog.Warn("Flow.SkipDescription: confirmation failed", "error", err, "responder", chatID)
	}
	return f.refreshWelcome(ctx, responder)
}

// describeLatestCondition attaches a description to the most recently
// added condition.
func (f *Flow) describeLatestCondition(ctx context.Context, r *models.Responder, description string) error {
	if len(r.MedicalKnowledge) == 0 {
		r.State = models.StateNoop
		return f.store.UpdateResponder(*r)
	}

	sort.SliceStable(r.MedicalKnowledge, func(i, j int) bool {
		return r.MedicalKnowledge[i].CreatedAt.After(r.MedicalKnowledge[j].CreatedAt)
	})
	r.MedicalKnowledge[0].Description = description
	condition := r.MedicalKnowledge[0].Condition
	r.State = models.StateNoop
	if err := f.store.UpdateResponder(*r); err != nil {
		return fmt.Errorf("failed to save description: %w", err)
	}

	if err := f.notify.EditMessage(ctx, r.ID, r.LastMessageID, notify.ConditionDescribedText(condition), nil); err != nil {
		slog.Warn("Flow.describeLatestCondition: confirmation failed", "error", err, "responder", r.ID)
	}
	return f.refreshWelcome(ctx, r)
}

// CancelMenu restores the welcome menu in place of any open flow.
func (f *Flow) CancelMenu(ctx context.Context, chatID int64) error {
	responder, err := f.store.GetResponder(chatID)
	if err != nil {
		return fmt.Errorf("failed to load responder %d: %w", chatID, err)
	}
	return f.refreshWelcome(ctx, responder)
}
