package notify

import (
	"fmt"
	"strings"

	"github.com/ConnectID-SG/connectid/internal/models"
)

// Dispatcher broadcast status labels.
const (
	StatusOpen         = "🔴 Not Acknowledged"
	StatusAcknowledged = "🟠 Acknowledged"
	StatusCompleted    = "🟢 Completed"
	StatusCancelled    = "⚫ Cancelled"
)

// WelcomeText is the single persistent menu message in a responder's chat.
const WelcomeText = "Welcome to ConnectID, below are a list of actions available."

// LocationRequestText prompts a responder to share their location during
// check-in.
const LocationRequestText = "❗ Click on the button below to send your location"

// ResponderRejectedText confirms a decline and the implicit check-out.
const ResponderRejectedText = "You have rejected this distress signal and have been checked out of the system. Do kindly check back in when you are available."

// ResponderTakenOverText tells a responder the dispatchers handled the signal.
const ResponderTakenOverText = "This distress signal has been taken over by the dispatchers."

// ResponderFalseSignalText tells a responder the signal was cancelled.
const ResponderFalseSignalText = "This distress signal is deemed to be a false signal by the dispatchers. Apologies for any inconvenience caused."

// ConditionPickText asks the responder to pick a medical condition.
const ConditionPickText = "Kindly choose one of the options below."

// AllConditionsText is shown when a responder already holds every condition.
const AllConditionsText = "You already possess all the medical conditions available in the system. Do contact our staffs at +65 9812 3456 if you deem that this condition is necessary."

// ProfileUpdatedText confirms a profile change.
const ProfileUpdatedText = "You have successfully updated your profile."

const falseSignalFooter = "<i>If you think that this is a false signal, please proceed to cancel this signal.</i>"

// MapsLink builds a Google Maps search link from a "district, (S)zip" style
// address. The zip segment carries the precision, so only it goes into the
// query.
func MapsLink(address string) string {
	query := address
	if parts := strings.SplitN(address, ", ", 2); len(parts) == 2 {
		query = parts[1]
	}
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s&zoom=20", query)
}

// AnchorTag renders the address as an HTML link to its maps location.
func AnchorTag(address string) string {
	return fmt.Sprintf("<a href='%s'>%s</a>", MapsLink(address), address)
}

// OfferText is the distress offer sent to a matched responder.
func OfferText(pwidName, address string) string {
	return fmt.Sprintf(
		"<b>Distress Signal</b>\n\n<b>%s</b> is in need of help now. He's currently located at %s. Kindly acknowledge this message within 30 seconds.",
		pwidName, AnchorTag(address),
	)
}

// DispatcherMatchedText is the initial dispatcher broadcast when a responder
// has been notified.
func DispatcherMatchedText(responderName string) string {
	body := fmt.Sprintf("A message has been sent out to <b>%s</b> to request for assistance.", responderName)
	return dispatcherText(StatusOpen, body, true)
}

// DispatcherUnmatchedText is the dispatcher broadcast when no responder
// qualified.
func DispatcherUnmatchedText() string {
	body := "There's no responders available at this moment. Kindly handle this signal manually or wait for the system to look for a responder."
	return dispatcherText(StatusOpen, body, true)
}

// DispatcherAcknowledgedText is the dispatcher broadcast after a responder
// accepts.
func DispatcherAcknowledgedText(responderName, responderPhone, pwidName, address string) string {
	body := fmt.Sprintf(
		"<b>%s - %s</b> is on the way to assist <b>%s</b> at %s",
		responderName, responderPhone, pwidName, AnchorTag(address),
	)
	return dispatcherText(StatusAcknowledged, body, true)
}

// DispatcherRejectedText is the dispatcher broadcast after a responder
// declines and the signal reopens.
func DispatcherRejectedText(responderName, pwidName, address string) string {
	body := fmt.Sprintf(
		"<b>%s</b> is unavailable at the moment to assist <b>%s</b> at %s.\n\nThe system will proceed to look for another responder. If you think this distress signal is urgent, kindly manage it manually.",
		responderName, pwidName, AnchorTag(address),
	)
	return dispatcherText(StatusOpen, body, true)
}

// DispatcherCompletedText is the dispatcher broadcast after a manual
// takeover.
func DispatcherCompletedText(dispatcherUser, pwidName, address string) string {
	body := fmt.Sprintf(
		"@%s has taken over this signal to assist <b>%s</b> at %s",
		dispatcherUser, pwidName, AnchorTag(address),
	)
	return dispatcherText(StatusCompleted, body, false)
}

// DispatcherCancelledText is the dispatcher broadcast after a false-signal
// cancellation.
func DispatcherCancelledText(dispatcherUser, pwidName, address string) string {
	body := fmt.Sprintf(
		"This signal to assist <b>%s</b> at %s has been cancelled by @%s",
		pwidName, AnchorTag(address), dispatcherUser,
	)
	return dispatcherText(StatusCancelled, body, false)
}

func dispatcherText(status, body string, withFooter bool) string {
	text := fmt.Sprintf("<b>❗ Distress Signal ❗</b>\n\n<b>Status: </b> %s\n\n%s\n\n", status, body)
	if withFooter {
		text += falseSignalFooter
	}
	return text
}

// ResponderAcknowledgedText confirms an acceptance and hands the responder
// the address plus the emergency contacts of the person they are assisting.
func ResponderAcknowledgedText(address string, pwid models.PWID) string {
	return fmt.Sprintf(
		"You have acknowledged this distress signal. Kindly head over to %s\n %s",
		AnchorTag(address), EmergencyContactsLine(pwid),
	)
}

// EmergencyContactsLine renders the emergency contact list of a profile.
func EmergencyContactsLine(pwid models.PWID) string {
	text := "<b>Emergency Contacts:</b> "
	if len(pwid.EmergencyContacts) == 0 {
		return text + "None"
	}
	for _, contact := range pwid.EmergencyContacts {
		text += fmt.Sprintf("%s (%s)- %s, ", contact.Name, contact.Relationship, contact.PhoneNumber)
	}
	return strings.TrimSuffix(text, ", ")
}

// CheckInOutText confirms a check-in or check-out.
func CheckInOutText(checkedIn bool) string {
	if checkedIn {
		return "You have successfully checked in. You'll receive any notifications if a distress signal is issued in the vicinity."
	}
	return "You have successfully checked out. You'll not receive any notifications if a distress signal is issued in the vicinity."
}

// ConditionDescriptionText asks for an optional description of a newly added
// condition.
func ConditionDescriptionText(condition string) string {
	return fmt.Sprintf(
		"Kindly provide a short description with <b>%s</b> in less than 30 words. If you do not have any description, do proceed to press skip.",
		condition,
	)
}

// ConditionDescribedText confirms a description was recorded.
func ConditionDescribedText(condition string) string {
	return fmt.Sprintf("You have successfully added a description to %s.", condition)
}

// ProfileText renders a responder's profile with their medical knowledge.
func ProfileText(r models.Responder) string {
	var b strings.Builder
	b.WriteString("<b>📖  Profile</b>\n\n")
	fmt.Fprintf(&b, "<b>Name</b>: <i>%s</i>\n", r.Name)
	fmt.Fprintf(&b, "<b>Gender</b>: <i>%s</i>\n", r.Gender)
	fmt.Fprintf(&b, "<b>Date of Birth</b>: <i>%s</i>\n", r.DateOfBirth)
	fmt.Fprintf(&b, "<b>NRIC</b>: <i>%s</i>\n", r.NRIC)
	fmt.Fprintf(&b, "<b>Phone Number</b>: <i>%s</i>\n", r.PhoneNumber)
	fmt.Fprintf(&b, "<b>Address</b>: <i>%s</i>\n", r.Address)
	b.WriteString("<b>Medical Knowledge</b>")
	if len(r.MedicalKnowledge) == 0 {
		b.WriteString(": <i>None</i>")
		return b.String()
	}
	b.WriteString("\n")
	for i, knowledge := range r.MedicalKnowledge {
		description := ""
		if knowledge.Description != "" {
			description = fmt.Sprintf(" - <i>%s</i>", knowledge.Description)
		}
		fmt.Fprintf(&b, "%d. %s%s\n", i+1, knowledge.Condition, description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// OnboardStepText frames an onboarding prompt with the current step number.
func OnboardStepText(step int, content string) string {
	return fmt.Sprintf("<b>Onboarding Form | Step %d</b>\n\n%s", step, content)
}
