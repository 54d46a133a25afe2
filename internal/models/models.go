// Package models defines the core data structures for ConnectID.
//
// It includes the PWID, responder and distress-signal types that are shared
// across the store, matcher, dispatch and bot modules.
package models

import (
	"errors"
	"time"
)

// NoMessageID marks an unset chat message handle.
const NoMessageID = -1

// Error variables for better error handling and testability
var (
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrEmptyLanguage      = errors.New("language preference cannot be empty")
	ErrEmptyGender        = errors.New("gender preference cannot be empty")
	ErrInvalidResponderID = errors.New("responder id must be a positive chat id")
)

// Location is a geographic position captured from the requester or a
// responder check-in. Once attached to a distress signal it is never mutated.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// IsZero reports whether the location has never been set.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0 && l.Address == ""
}

// EmergencyContact is a person to be alerted when a PWID issues a signal.
type EmergencyContact struct {
	Name         string `json:"name"`
	PhoneNumber  string `json:"phone_number"`
	Relationship string `json:"relationship"`
}

// MedicalKnowledge records a responder's experience with one condition.
// Entries are appended on profile updates; a description added later always
// targets the most recently created entry.
type MedicalKnowledge struct {
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// OnboardState tracks a responder's progress through the onboarding form.
type OnboardState int

const (
	// StateNoop means onboarding is complete and the responder is idle.
	StateNoop OnboardState = -1
	// StateOnboard is the initial state before any field is collected.
	StateOnboard     OnboardState = 0
	StateName        OnboardState = 1
	StateLanguage    OnboardState = 2
	StatePhoneNumber OnboardState = 3
	StateNRIC        OnboardState = 4
	StateAddress     OnboardState = 5
	StateDateOfBirth OnboardState = 6
	StateGender      OnboardState = 7
	// StateMedicalKnowledge collects the free-text description for the most
	// recently added condition.
	StateMedicalKnowledge OnboardState = 8
)

// String returns a human-readable name for the onboarding state.
func (s OnboardState) String() string {
	switch s {
	case StateNoop:
		return "noop"
	case StateOnboard:
		return "onboard"
	case StateName:
		return "name"
	case StateLanguage:
		return "language"
	case StatePhoneNumber:
		return "phone_number"
	case StateNRIC:
		return "nric"
	case StateAddress:
		return "address"
	case StateDateOfBirth:
		return "date_of_birth"
	case StateGender:
		return "gender"
	case StateMedicalKnowledge:
		return "existing_medical_knowledge"
	default:
		return "unknown"
	}
}

// PWID is a person with intellectual disability registered with the system.
// A fresh read is taken per signal; records are not mutated mid-signal.
type PWID struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	LanguagePreference string             `json:"language_preference"`
	PhoneNumber        string             `json:"phone_number"`
	MedicalConditions  []string           `json:"medical_conditions"`
	NRIC               string             `json:"nric"`
	Address            string             `json:"address"`
	DateOfBirth        string             `json:"date_of_birth"`
	Gender             string             `json:"gender"`
	GenderPreference   string             `json:"gender_preference"`
	EmergencyContacts  []EmergencyContact `json:"emergency_contacts"`
	Location           Location           `json:"location"`
}

// Validate checks the fields required for registration and matching.
func (p *PWID) Validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}
	if p.LanguagePreference == "" {
		return ErrEmptyLanguage
	}
	if p.GenderPreference == "" {
		return ErrEmptyGender
	}
	return nil
}

// Responder is a registered volunteer. The ID is the durable Telegram user
// id, which doubles as the chat id the bot messages.
type Responder struct {
	ID               int64              `json:"id"`
	Name             string             `json:"name"`
	Languages        []string           `json:"languages"`
	PhoneNumber      string             `json:"phone_number"`
	NRIC             string             `json:"nric"`
	Address          string             `json:"address"`
	DateOfBirth      string             `json:"date_of_birth"`
	Gender           string             `json:"gender"`
	MedicalKnowledge []MedicalKnowledge `json:"existing_medical_knowledge"`
	IsAvailable      bool               `json:"is_available"`
	Location         Location           `json:"location"`
	State            OnboardState       `json:"state"`
	LastMessageID    int                `json:"last_message_id"`
}

// Validate checks the fields required to create a responder record.
func (r *Responder) Validate() error {
	if r.ID <= 0 {
		return ErrInvalidResponderID
	}
	return nil
}

// Conditions returns the list of condition names the responder has
// experience with, used by the matcher.
func (r *Responder) Conditions() []string {
	if len(r.MedicalKnowledge) == 0 {
		return nil
	}
	conditions := make([]string, 0, len(r.MedicalKnowledge))
	for _, mk := range r.MedicalKnowledge {
		conditions = append(conditions, mk.Condition)
	}
	return conditions
}

// HasCondition reports whether the responder already recorded the condition.
func (r *Responder) HasCondition(condition string) bool {
	for _, mk := range r.MedicalKnowledge {
		if mk.Condition == condition {
			return true
		}
	}
	return false
}

// Distress is one help-request instance and its tracked resolution state.
//
// The record is keyed by an internal UUID; the dispatcher group-chat message
// id is stored as a separate indexed attribute so that persistence identity
// is not coupled to a notification side effect.
type Distress struct {
	ID                 string     `json:"id"`
	GroupChatMessageID int        `json:"group_chat_message_id"`
	MessageID          int        `json:"message_id"`
	Location           Location   `json:"location"`
	PWID               PWID       `json:"pwid"`
	Responder          *Responder `json:"responder,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	AcknowledgedAt     time.Time  `json:"acknowledged_at,omitempty"`
	IsAcknowledged     bool       `json:"is_acknowledged"`
	IsCompleted        bool       `json:"is_completed"`
}

// IsTerminal reports whether the signal has been closed out. Terminal
// signals never transition again.
func (d *Distress) IsTerminal() bool {
	return d.IsCompleted
}

// IsAssigned reports whether a responder is currently attached.
func (d *Distress) IsAssigned() bool {
	return d.Responder != nil
}
