package notify

import "fmt"

// Callback actions routed back through the bot webhook. Distress and
// dispatcher actions carry the distress UUID as their final field.
const (
	ActionOnboard  = "onboard"
	ActionCheckIn  = "check_in"
	ActionCheckOut = "check_out"
	ActionProfile  = "profile"
	ActionCancel   = "cancel"
	ActionLanguage = "language"
	ActionGender   = "gender"
	ActionOption   = "option"
	ActionDistress = "distress"
	ActionDispatch = "dispatcher"
	VerbAccept     = "accept"
	VerbDecline    = "decline"
	VerbOptionAdd  = "add"
	VerbOptionSkip = "skip"
)

// OfferControls builds the accept/decline buttons attached to a distress
// offer in the responder's chat.
func OfferControls(distressID string) []ControlRow {
	return []ControlRow{{
		{Label: "✅ Accept", Data: fmt.Sprintf("%s %s %s", ActionDistress, VerbAccept, distressID)},
		{Label: "❌ Decline", Data: fmt.Sprintf("%s %s %s", ActionDistress, VerbDecline, distressID)},
	}}
}

// DispatcherOpenControls builds the accept/cancel buttons shown on an
// unacknowledged signal in the dispatcher channel.
func DispatcherOpenControls(distressID string) []ControlRow {
	return []ControlRow{{
		{Label: "✅ Accept", Data: fmt.Sprintf("%s %s %s", ActionDispatch, VerbAccept, distressID)},
		{Label: "❌ Cancel", Data: fmt.Sprintf("%s %s %s", ActionDispatch, VerbDecline, distressID)},
	}}
}

// DispatcherAcknowledgedControls builds the cancel-only button shown once a
// responder has acknowledged a signal.
func DispatcherAcknowledgedControls(distressID string) []ControlRow {
	return []ControlRow{{
		{Label: "❌ Cancel", Data: fmt.Sprintf("%s %s %s", ActionDispatch, VerbDecline, distressID)},
	}}
}

// WelcomeControls builds the welcome menu. Onboarded responders see their
// profile plus a check-in or check-out toggle based on availability;
// everyone else sees the onboard button.
func WelcomeControls(isOnboarded, isAvailable bool) []ControlRow {
	if !isOnboarded {
		return []ControlRow{{{Label: "📝 Onboard", Data: ActionOnboard}}}
	}
	toggle := Control{Label: "✅ Check-In", Data: ActionCheckIn}
	if isAvailable {
		toggle = Control{Label: "❌ Check-Out", Data: ActionCheckOut}
	}
	return []ControlRow{
		{{Label: "📖 Profile", Data: ActionProfile}},
		{toggle},
	}
}

// LanguageControls builds one button per selectable language.
func LanguageControls(languages []string) []ControlRow {
	row := make(ControlRow, 0, len(languages))
	for _, language := range languages {
		row = append(row, Control{Label: language, Data: fmt.Sprintf("%s %s", ActionLanguage, language)})
	}
	return []ControlRow{row}
}

// GenderControls builds the gender selection buttons.
func GenderControls() []ControlRow {
	return []ControlRow{{
		{Label: "Female", Data: ActionGender + " female"},
		{Label: "Male", Data: ActionGender + " male"},
	}}
}

// ConditionControls builds one button per condition a responder can still
// add, followed by a cancel row.
func ConditionControls(conditions []string) []ControlRow {
	rows := make([]ControlRow, 0, len(conditions)+1)
	for _, condition := range conditions {
		rows = append(rows, ControlRow{{
			Label: condition,
			Data:  fmt.Sprintf("%s %s %s", ActionOption, VerbOptionAdd, condition),
		}})
	}
	rows = append(rows, ControlRow{{Label: "Cancel", Data: ActionCancel}})
	return rows
}

// SkipControls builds the skip button for the optional condition description.
func SkipControls() []ControlRow {
	return []ControlRow{{{Label: "Skip", Data: fmt.Sprintf("%s %s", ActionOption, VerbOptionSkip)}}}
}

// ProfileControls builds the add/remove buttons under the profile view.
func ProfileControls() []ControlRow {
	return []ControlRow{
		{
			{Label: "➕ Add", Data: fmt.Sprintf("%s %s", ActionOption, VerbOptionAdd)},
		},
		{{Label: "Cancel", Data: ActionCancel}},
	}
}
