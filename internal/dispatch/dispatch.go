// Package dispatch implements the distress signal lifecycle.
//
// The Controller owns every state transition of a signal: creation and
// matching, responder acknowledgement and rejection, dispatcher takeover
// and cancellation, and the periodic sweep that retries unassigned
// signals. All persistence happens before outward-facing message edits so
// a crashed edit never leaves the record behind the chat state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ConnectID-SG/connectid/internal/alert"
	"github.com/ConnectID-SG/connectid/internal/match"
	"github.com/ConnectID-SG/connectid/internal/models"
	"github.com/ConnectID-SG/connectid/internal/notify"
	"github.com/ConnectID-SG/connectid/internal/store"
)

// ErrSignalClosed is returned when a transition is attempted on a signal
// that has already been completed or cancelled.
var ErrSignalClosed = errors.New("distress signal already closed")

// Opts holds configuration options for the controller.
type Opts struct {
	Store  store.Store
	Notify notify.Notifier
	Alerts alert.Sender
	NewID  func() string
	Now    func() time.Time
}

// Option defines a configuration option for the controller.
type Option func(*Opts)

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithNotifier sets the chat notification layer.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Opts) { o.Notify = n }
}

// WithAlertSender sets the emergency-contact alert sender.
func WithAlertSender(a alert.Sender) Option {
	return func(o *Opts) { o.Alerts = a }
}

// WithIDGenerator overrides signal id generation (used by tests).
func WithIDGenerator(fn func() string) Option {
	return func(o *Opts) { o.NewID = fn }
}

// WithClock overrides the time source (used by tests).
func WithClock(fn func() time.Time) Option {
	return func(o *Opts) { o.Now = fn }
}

// Controller drives distress signals through their lifecycle.
type Controller struct {
	store  store.Store
	notify notify.Notifier
	alerts alert.Sender
	newID  func() string
	now    func() time.Time

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	rlocks map[int64]*sync.Mutex
}

// NewController creates a controller with the given options. Store and
// notifier are required; the alert sender defaults to a no-op.
func NewController(opts ...Option) (*Controller, error) {
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
	if cfg.Alerts == nil {
		cfg.Alerts = alert.NoopSender{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		store:  cfg.Store,
		notify: cfg.Notify,
		alerts: cfg.Alerts,
		newID:  cfg.NewID,
		now:    cfg.Now,
		locks:  map[string]*sync.Mutex{},
		rlocks: map[int64]*sync.Mutex{},
	}, nil
}

// signalLock returns the mutex serializing transitions for one signal.
// At most one transition is in flight per signal id.
func (c *Controller) signalLock(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[id] = lock
	}
	return lock
}

// responderLock returns the mutex serializing availability checks and
// assignment for one responder. It is always acquired after the signal
// lock, never before.
func (c *Controller) responderLock(id int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.rlocks[id]
	if !ok {
		lock = &sync.Mutex{}
		c.rlocks[id] = lock
	}
	return lock
}

// CreateResult reports the outcome of signal creation.
type CreateResult struct {
	Distress  models.Distress
	Responder *models.Responder
}

// CreateSignal raises a new distress signal for the named PWID at the
// given location. It matches a responder, notifies them and the dispatcher
// channel, persists the signal and alerts the PWID's emergency contacts.
// A nil Responder in the result means no responder qualified.
func (c *Controller) CreateSignal(ctx context.Context, name string, location models.Location) (*CreateResult, error) {
	pwid, err := c.store.GetPWIDByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load pwid %s: %w", name, err)
	}
	pwid.Location = location

	responders, err := c.store.ListAvailableResponders()
	if err != nil {
		return nil, fmt.Errorf("failed to list responders: %w", err)
	}
	matched := match.SelectResponder(*pwid, responders)
	if matched != nil {
		rlock := c.responderLock(matched.ID)
		rlock.Lock()
		defer rlock.Unlock()
		// The listing is a snapshot; the responder may have been checked
		// out by a concurrent rejection since it was taken.
		current, err := c.store.GetResponder(matched.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload responder %d: %w", matched.ID, err)
		}
		matched = current
		if !current.IsAvailable {
			matched = nil
		}
	}

	distress := models.Distress{
		ID:                 c.newID(),
		GroupChatMessageID: models.NoMessageID,
		MessageID:          models.NoMessageID,
		Location:           location,
		PWID:               *pwid,
		Responder:          matched,
		CreatedAt:          c.now(),
	}

	if matched != nil {
		messageID, err := c.notify.SendToResponder(ctx, matched.ID,
			notify.OfferText(pwid.Name, location.Address),
			notify.OfferControls(distress.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to notify responder %d: %w", matched.ID, err)
		}
		distress.MessageID = messageID
	}

	broadcast := notify.DispatcherUnmatchedText()
	if matched != nil {
		broadcast = notify.DispatcherMatchedText(matched.Name)
	}
	groupMessageID, err := c.notify.SendToDispatchChannel(ctx, broadcast,
		notify.DispatcherOpenControls(distress.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to broadcast signal: %w", err)
	}
	distress.GroupChatMessageID = groupMessageID

	if err := c.store.CreateDistress(distress); err != nil {
		return nil, fmt.Errorf("failed to persist distress signal: %w", err)
	}
	slog.Info("Controller.CreateSignal: signal created", "distress", distress.ID, "pwid", pwid.Name, "matched", matched != nil)

	// Alerting the emergency contacts is best effort.
	if err := c.alerts.AlertEmergencyContacts(ctx, *pwid, location.Address); err != nil {
		slog.Error("Controller.CreateSignal: emergency contact alert failed", "error", err, "distress", distress.ID)
	}

	return &CreateResult{Distress: distress, Responder: matched}, nil
}

// Acknowledge marks the signal accepted by its assigned responder. The
// responder's offer message becomes a confirmation with the address and the
// PWID's emergency contacts; the dispatcher broadcast flips to Acknowledged
// with a cancel-only control.
func (c *Controller) Acknowledge(ctx context.Context, distressID string) error {
	lock := c.signalLock(distressID)
	lock.Lock()
	defer lock.Unlock()

	distress, err := c.store.GetDistress(distressID)
	if err != nil {
		return fmt.Errorf("failed to load distress %s: %w", distressID, err)
	}
	if distress.IsTerminal() {
		return ErrSignalClosed
	}
	if !distress.IsAssigned() {
		return fmt.Errorf("distress %s has no assigned responder", distressID)
	}

	distress.IsAcknowledged = true
	distress.AcknowledgedAt = c.now()
	if err := c.store.UpdateDistress(*distress); err != nil {
		return fmt.Errorf("failed to persist acknowledgement: %w", err)
	}

	responder := distress.Responder
	var notifyErr error
	if err := c.notify.EditMessage(ctx, responder.ID, distress.MessageID,
		notify.ResponderAcknowledgedText(distress.Location.Address, distress.PWID), nil); err != nil {
		slog.Error("Controller.Acknowledge: responder confirmation failed", "error", err, "distress", distressID)
		notifyErr = errors.Join(notifyErr, fmt.Errorf("responder confirmation: %w", err))
	}

	if err := c.notify.EditMessage(ctx, c.notify.DispatchChannelID(), distress.GroupChatMessageID,
		notify.DispatcherAcknowledgedText(responder.Name, responder.PhoneNumber, distress.PWID.Name, distress.Location.Address),
		notify.DispatcherAcknowledgedControls(distress.ID)); err != nil {
		slog.Error("Controller.Acknowledge: dispatcher update failed", "error", err, "distress", distressID)
		notifyErr = errors.Join(notifyErr, fmt.Errorf("dispatcher update: %w", err))
	}
	if notifyErr != nil {
		return fmt.Errorf("acknowledgement persisted but notification failed: %w", notifyErr)
	}

	slog.Info("Controller.Acknowledge: signal acknowledged", "distress", distressID, "responder", responder.ID)
	return nil
}

// Reject records a responder declining the signal. The responder is checked
// out so they cannot be re-matched to the same signal, the assignment is
// cleared, the dispatcher broadcast reopens and the responder's chat is
// cleaned up.
func (c *Controller) Reject(ctx context.Context, distressID string) error {
	lock := c.signalLock(distressID)
	lock.Lock()
	defer lock.Unlock()

	distress, err := c.store.GetDistress(distressID)
	if err != nil {
		return fmt.Errorf("failed to load distress %s: %w", distressID, err)
	}
	if distress.IsTerminal() {
		return ErrSignalClosed
	}
	if !distress.IsAssigned() {
		return fmt.Errorf("distress %s has no assigned responder", distressID)
	}

	rejected := *distress.Responder
	rejected.IsAvailable = false
	rlock := c.responderLock(rejected.ID)
	rlock.Lock()
	err = c.store.UpdateResponder(rejected)
	rlock.Unlock()
	if err != nil {
		return fmt.Errorf("failed to check out responder %d: %w", rejected.ID, err)
	}

	offerMessageID := distress.MessageID
	distress.MessageID = models.NoMessageID
	distress.Responder = nil
	if err := c.store.UpdateDistress(*distress); err != nil {
		return fmt.Errorf("failed to clear assignment: %w", err)
	}

	var notifyErr error
	if err := c.notify.EditMessage(ctx, rejected.ID, offerMessageID, notify.ResponderRejectedText, nil); err != nil {
		slog.Error("Controller.Reject: responder notice failed", "error", err, "distress", distressID)
		notifyErr = errors.Join(notifyErr, fmt.Errorf("responder notice: %w", err))
	}
	if err := c.notify.EditMessage(ctx, c.notify.DispatchChannelID(), distress.GroupChatMessageID,
		notify.DispatcherRejectedText(rejected.Name, distress.PWID.Name, distress.Location.Address),
		notify.DispatcherOpenControls(distress.ID)); err != nil {
		slog.Error("Controller.Reject: dispatcher update failed", "error", err, "distress", distressID)
		notifyErr = errors.Join(notifyErr, fmt.Errorf("dispatcher update: %w", err))
	}
	if err := c.notify.DeleteMessage(ctx, rejected.ID, offerMessageID); err != nil {
		slog.Warn("Controller.Reject: offer cleanup failed", "error", err, "distress", distressID)
		notifyErr = errors.Join(notifyErr, fmt.Errorf("offer cleanup: %w", err))
	}

	// Put the welcome menu back in the responder's chat slot.
	if rejected.LastMessageID != models.NoMessageID {
		if err := c.notify.EditMessage(ctx, rejected.ID, rejected.LastMessageID,
			notify.WelcomeText, notify.WelcomeControls(true, false)); err != nil {
			slog.Warn("Controller.Reject: welcome menu refresh failed", "error", err, "responder", rejected.ID)
			notifyErr = errors.Join(notifyErr, fmt.Errorf("welcome menu refresh: %w", err))
		}
	}
	if notifyErr != nil {
		return fmt.Errorf("rejection persisted but notification failed: %w", notifyErr)
	}

	slog.Info("Controller.Reject: signal rejected", "distress", distressID, "responder", rejected.ID)
	return nil
}

// ManualAcknowledge records a dispatcher taking the signal over. The signal
// closes as completed; an assigned responder is told about the takeover and
// their offer message is removed.
func (c *Controller) ManualAcknowledge(ctx context.Context, distressID, dispatcherUser string) error {
	return c.close(ctx, distressID, dispatcherUser, false)
}

// Cancel closes the signal as a false alarm. An assigned responder gets an
// apology before their offer message is removed.
func (c *Controller) Cancel(ctx context.Context, distressID, dispatcherUser string) error {
	return c.close(ctx, distressID, dispatcherUser, true)
}

func (c *Controller) close(ctx context.Context, distressID, dispatcherUser string, falseAlarm bool) error {
	lock := c.signalLock(distressID)
	lock.Lock()
	defer lock.Unlock()

	distress, err := c.store.GetDistress(distressID)
	if err != nil {
		return fmt.Errorf("failed to load distress %s: %w", distressID, err)
	}
	if distress.IsTerminal() {
		return ErrSignalClosed
	}

	distress.IsAcknowledged = true
	distress.AcknowledgedAt = c.now()
	distress.IsCompleted = true
	if err := c.store.UpdateDistress(*distress); err != nil {
		return fmt.Errorf("failed to close distress: %w", err)
	}

	var notifyErr error
	if distress.IsAssigned() && distress.MessageID != models.NoMessageID {
		text := notify.ResponderTakenOverText
		if falseAlarm {
			text = notify.ResponderFalseSignalText
		}
		responderID := distress.Responder.ID
		if err := c.notify.EditMessage(ctx, responderID, distress.MessageID, text, nil); err != nil {
			slog.Error("Controller.close: responder notice failed", "error", err, "distress", distressID)
			notifyErr = errors.Join(notifyErr, fmt.Errorf("responder notice: %w", err))
		}
		if err := c.notify.DeleteMessage(ctx, responderID, distress.MessageID); err != nil {
			slog.Warn("Controller.close: offer cleanup failed", "error", err, "distress", distressID)
			notifyErr = errors.Join(notifyErr, fmt.Errorf("offer cleanup: %w", err))
		}
	}

	text := notify.DispatcherCompletedText(dispatcherUser, distress.PWID.Name, distress.Location.Address)
	if falseAlarm {
		text = notify.DispatcherCancelledText(dispatcherUser, distress.PWID.Name, distress.Location.Address)
	}
	if err := c.notify.EditMessage(ctx, c.notify.DispatchChannelID(), distress.GroupChatMessageID, text, nil); err != nil {
		slog.Error("Controller.close: dispatcher update failed", "error", err, "distress", distressID)
		notifyErr = errors.Join(notifyErr, fmt.Errorf("dispatcher update: %w", err))
	}
	if notifyErr != nil {
		return fmt.Errorf("signal closed but notification failed: %w", notifyErr)
	}

	slog.Info("Controller.close: signal closed", "distress", distressID, "false_alarm", falseAlarm, "by", dispatcherUser)
	return nil
}

// Sweep retries matching for every unresolved signal. A signal that finds a
// responder is assigned and persisted, the responder is offered the signal
// and the existing dispatcher broadcast is edited in place. Failures are
// isolated per signal; unmatched signals stay queued for the next run.
// It returns the number of unresolved records processed, whether or not
// each one could be assigned.
func (c *Controller) Sweep(ctx context.Context) (int, error) {
	unresolved, err := c.store.ListUnresolvedDistress()
	if err != nil {
		return 0, fmt.Errorf("failed to list unresolved signals: %w", err)
	}

	processed := 0
	for _, distress := range unresolved {
		processed++
		if err := c.sweepOne(ctx, distress.ID); err != nil {
			slog.Error("Controller.Sweep: signal retry failed", "error", err, "distress", distress.ID)
		}
	}
	slog.Info("Controller.Sweep: sweep finished", "processed", processed)
	return processed, nil
}

func (c *Controller) sweepOne(ctx context.Context, distressID string) error {
	lock := c.signalLock(distressID)
	lock.Lock()
	defer lock.Unlock()

	distress, err := c.store.GetDistress(distressID)
	if err != nil {
		return fmt.Errorf("failed to load distress %s: %w", distressID, err)
	}
	// Another transition may have resolved it since listing.
	if distress.IsTerminal() || distress.IsAcknowledged || distress.IsAssigned() {
		return nil
	}

	responders, err := c.store.ListAvailableResponders()
	if err != nil {
		return fmt.Errorf("failed to list responders: %w", err)
	}
	matched := match.SelectResponder(distress.PWID, responders)
	if matched == nil {
		return nil
	}

	// Re-check availability under the responder lock so an assignment can
	// never interleave with a rejection checking the responder out.
	rlock := c.responderLock(matched.ID)
	rlock.Lock()
	defer rlock.Unlock()
	current, err := c.store.GetResponder(matched.ID)
	if err != nil {
		return fmt.Errorf("failed to reload responder %d: %w", matched.ID, err)
	}
	if !current.IsAvailable {
		return nil
	}
	matched = current

	messageID, err := c.notify.SendToResponder(ctx, matched.ID,
		notify.OfferText(distress.PWID.Name, distress.Location.Address),
		notify.OfferControls(distress.ID))
	if err != nil {
		return fmt.Errorf("failed to notify responder %d: %w", matched.ID, err)
	}

	distress.Responder = matched
	distress.MessageID = messageID
	if err := c.store.UpdateDistress(*distress); err != nil {
		return fmt.Errorf("failed to persist assignment: %w", err)
	}

	if err := c.notify.EditMessage(ctx, c.notify.DispatchChannelID(), distress.GroupChatMessageID,
		notify.DispatcherMatchedText(matched.Name),
		notify.DispatcherOpenControls(distress.ID)); err != nil {
		slog.Error("Controller.sweepOne: dispatcher update failed", "error", err, "distress", distress.ID)
	}
	return nil
}
