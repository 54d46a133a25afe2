package onboard

import (
	"context"
	"testing"
	"time"

	"github.com/ConnectID-SG/connectid/internal/models"
	"github.com/ConnectID-SG/connectid/internal/notify"
	"github.com/ConnectID-SG/connectid/internal/store"
)

type fakeNotifier struct {
	nextMessageID    int
	sent             []string
	edits            []string
	deletes          []int
	locationRequests int
}

func (f *fakeNotifier) SendToResponder(ctx context.Context, chatID int64, text string, controls []notify.ControlRow) (int, error) {
	f.nextMessageID++
	f.sent = append(f.sent, text)
	return f.nextMessageID, nil
}

func (f *fakeNotifier) SendToDispatchChannel(ctx context.Context, text string, controls []notify.ControlRow) (int, error) {
	return f.SendToResponder(ctx, 0, text, controls)
}

func (f *fakeNotifier) EditMessage(ctx context.Context, chatID int64, messageID int, text string, controls []notify.ControlRow) error {
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeNotifier) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakeNotifier) SendLocationRequest(ctx context.Context, chatID int64, text string) (int, error) {
	f.locationRequests++
	return f.SendToResponder(ctx, chatID, text, nil)
}

func (f *fakeNotifier) DispatchChannelID() int64 { return -1 }

func newTestFlow(t *testing.T) (*Flow, *store.InMemoryStore, *fakeNotifier) {
	t.Helper()
	s := store.NewInMemoryStore()
	n := &fakeNotifier{}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f, err := NewFlow(
		WithStore(s),
		WithNotifier(n),
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		}),
	)
	if err != nil {
		t.Fatalf("NewFlow: %v", err)
	}
	return f, s, n
}

const chatID int64 = 777

func TestFullOnboarding(t *testing.T) {
	f, s, _ := newTestFlow(t)
	ctx := context.Background()

	if err := f.StartOnboarding(ctx, chatID); err != nil {
		t.Fatalf("StartOnboarding: %v", err)
	}

	steps := []struct {
		text  string
		state models.OnboardState
	}{
		{"Jordan Lee", models.StateLanguage},
	}
	for _, step := range steps {
		handled, err := f.HandleText(ctx, chatID, step.text)
		if err != nil || !handled {
			t.Fatalf("HandleText(%q): handled=%v err=%v", step.text, handled, err)
		}
		r, _ := s.GetResponder(chatID)
		if r.State != step.state {
			t.Fatalf("after %q state = %v, want %v", step.text, r.State, step.state)
		}
	}

	if err := f.SetLanguage(ctx, chatID, "english"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	for _, text := range []string{"+6591234567", "S9012345A", "Bishan St 22", "1990-04-12"} {
		if handled, err := f.HandleText(ctx, chatID, text); err != nil || !handled {
			t.Fatalf("HandleText(%q): handled=%v err=%v", text, handled, err)
		}
	}
	if err := f.SetGender(ctx, chatID, "female"); err != nil {
		t.Fatalf("SetGender: %v", err)
	}

	r, err := s.GetResponder(chatID)
	if err != nil {
		t.Fatalf("GetResponder: %v", err)
	}
	if r.State != models.StateNoop {
		t.Errorf("state = %v, want noop", r.State)
	}
	if r.Name != "Jordan Lee" || r.PhoneNumber != "+6591234567" || r.NRIC != "S9012345A" {
		t.Errorf("profile fields not recorded: %+v", r)
	}
	if r.DateOfBirth != "1990-04-12" || r.Gender != "female" {
		t.Errorf("dob/gender not recorded: %+v", r)
	}
	if len(r.Languages) != 1 || r.Languages[0] != "english" {
		t.Errorf("languages = %v", r.Languages)
	}
	if r.IsAvailable {
		t.Error("freshly onboarded responder must not be available")
	}
}

func TestHandleTextRejectsBadDate(t *testing.T) {
	f, s, _ := newTestFlow(t)
	ctx := context.Background()

	if err := f.StartOnboarding(ctx, chatID); err != nil {
		t.Fatalf("StartOnboarding: %v", err)
	}
	f.HandleText(ctx, chatID, "Jordan Lee")
	f.SetLanguage(ctx, chatID, "english")
	f.HandleText(ctx, chatID, "+6591234567")
	f.HandleText(ctx, chatID, "S9012345A")
	f.HandleText(ctx, chatID, "Bishan St 22")

	if handled, err := f.HandleText(ctx, chatID, "12 April 1990"); err != nil || !handled {
		t.Fatalf("HandleText: handled=%v err=%v", handled, err)
	}
	r, _ := s.GetResponder(chatID)
	if r.State != models.StateDateOfBirth {
		t.Errorf("invalid date must not advance, state = %v", r.State)
	}
}

func TestHandleTextIgnoresUnknownChat(t *testing.T) {
	f, _, _ := newTestFlow(t)
	handled, err := f.HandleText(context.Background(), 999, "hello")
	if err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if handled {
		t.Error("text from unknown chats must not be consumed")
	}
}

func TestCheckInAndOut(t *testing.T) {
	f, s, n := newTestFlow(t)
	ctx := context.Background()

	r := models.Responder{ID: chatID, Name: "Jordan", State: models.StateNoop, LastMessageID: 5}
	if err := s.CreateResponder(r); err != nil {
		t.Fatalf("CreateResponder: %v", err)
	}

	if err := f.CheckIn(ctx, chatID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if n.locationRequests != 1 {
		t.Fatalf("expected a location request, got %d", n.locationRequests)
	}
	loaded, _ := s.GetResponder(chatID)
	if loaded.IsAvailable {
		t.Error("availability must not flip before the location fix")
	}

	fix := models.Location{Latitude: 1.35, Longitude: 103.85}
	if err := f.CompleteCheckIn(ctx, chatID, fix); err != nil {
		t.Fatalf("CompleteCheckIn: %v", err)
	}
	loaded, _ = s.GetResponder(chatID)
	if !loaded.IsAvailable {
		t.Error("responder should be available after check-in")
	}
	if loaded.Location != fix {
		t.Errorf("location = %+v, want %+v", loaded.Location, fix)
	}

	if err := f.CheckOut(ctx, chatID); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	loaded, _ = s.GetResponder(chatID)
	if loaded.IsAvailable {
		t.Error("responder should be unavailable after check-out")
	}
	if loaded.Location != fix {
		t.Error("check-out must retain the last location")
	}
}

func TestAddConditionWithDescription(t *testing.T) {
	f, s, _ := newTestFlow(t)
	ctx := context.Background()

	r := models.Responder{ID: chatID, Name: "Jordan", State: models.StateNoop, LastMessageID: 5}
	if err := s.CreateResponder(r); err != nil {
		t.Fatalf("CreateResponder: %v", err)
	}

	if err := f.AddCondition(ctx, chatID, "Down syndrome"); err != nil {
		t.Fatalf("AddCondition: %v", err)
	}
	loaded, _ := s.GetResponder(chatID)
	if loaded.State != models.StateMedicalKnowledge {
		t.Fatalf("state = %v, want medical knowledge", loaded.State)
	}

	if err := f.AddCondition(ctx, chatID, "Developmental delay"); err != nil {
		t.Fatalf("AddCondition: %v", err)
	}
	handled, err := f.HandleText(ctx, chatID, "volunteered at MINDS")
	if err != nil || !handled {
		t.Fatalf("HandleText: handled=%v err=%v", handled, err)
	}

	loaded, _ = s.GetResponder(chatID)
	if loaded.State != models.StateNoop {
		t.Errorf("state = %v, want noop", loaded.State)
	}
	// The description lands on the most recently added condition.
	var described string
	for _, mk := range loaded.MedicalKnowledge {
		if mk.Description == "volunteered at MINDS" {
			described = mk.Condition
		}
	}
	if described != "Developmental delay" {
		t.Errorf("description attached to %q, want most recent condition", described)
	}
}

func TestSkipDescription(t *testing.T) {
	f, s, _ := newTestFlow(t)
	ctx := context.Background()

	r := models.Responder{ID: chatID, Name: "Jordan", State: models.StateNoop, LastMessageID: 5}
	if err := s.CreateResponder(r); err != nil {
		t.Fatalf("CreateResponder: %v", err)
	}
	if err := f.AddCondition(ctx, chatID, "Down syndrome"); err != nil {
		t.Fatalf("AddCondition: %v", err)
	}
	if err := f.SkipDescription(ctx, chatID); err != nil {
		t.Fatalf("SkipDescription: %v", err)
	}
	loaded, _ := s.GetResponder(chatID)
	if loaded.State != models.StateNoop {
		t.Errorf("state = %v, want noop", loaded.State)
	}
	if loaded.MedicalKnowledge[0].Description != "" {
		t.Error("skipped description must stay empty")
	}
}

func TestListConditionsExhausted(t *testing.T) {
	f, s, n := newTestFlow(t)
	ctx := context.Background()

	r := models.Responder{ID: chatID, Name: "Jordan", State: models.StateNoop, LastMessageID: 5}
	for _, condition := range MedicalConditions {
		r.MedicalKnowledge = append(r.MedicalKnowledge, models.MedicalKnowledge{Condition: condition})
	}
	if err := s.CreateResponder(r); err != nil {
		t.Fatalf("CreateResponder: %v", err)
	}
	if err := f.ListConditions(ctx, chatID); err != nil {
		t.Fatalf("ListConditions: %v", err)
	}
	if len(n.sent) != 1 || n.sent[0] != notify.AllConditionsText {
		t.Errorf("expected the exhausted notice, got %+v", n.sent)
	}
}

func TestWelcomeIgnoresRepeatedStart(t *testing.T) {
	f, s, n := newTestFlow(t)
	ctx := context.Background()

	r := models.Responder{ID: chatID, Name: "Jordan", State: models.StateNoop, LastMessageID: 5}
	if err := s.CreateResponder(r); err != nil {
		t.Fatalf("CreateResponder: %v", err)
	}
	if err := f.Welcome(ctx, chatID); err != nil {
		t.Fatalf("Welcome: %v", err)
	}
	if len(n.sent) != 0 {
		t.Errorf("repeated /start should be ignored, got %+v", n.sent)
	}
}

func TestWelcomeForNewChat(t *testing.T) {
	f, _, n := newTestFlow(t)
	if err := f.Welcome(context.Background(), chatID); err != nil {
		t.Fatalf("Welcome: %v", err)
	}
	if len(n.sent) != 1 || n.sent[0] != notify.WelcomeText {
		t.Errorf("expected the welcome menu, got %+v", n.sent)
	}
}
