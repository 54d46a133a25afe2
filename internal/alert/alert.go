// Package alert sends SMS alerts to a PWID's emergency contacts when a
// distress signal is raised.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ConnectID-SG/connectid/internal/models"
)

// Sender delivers out-of-band alerts for a distress signal. Delivery
// failures are reported but must not block the signal lifecycle.
type Sender interface {
	AlertEmergencyContacts(ctx context.Context, pwid models.PWID, address string) error
}

// Opts holds configuration options for the Twilio SMS sender.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS sender.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sender phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// TwilioSender sends SMS alerts through the Twilio REST API.
type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSender creates a sender with the given options, falling back to
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables when an option is unset.
func NewTwilioSender(opts ...Option) (*TwilioSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{client: client, fromNumber: cfg.FromNumber}, nil
}

// AlertEmergencyContacts sends one SMS per emergency contact. Individual
// failures are logged and collected; the remaining contacts are still
// attempted.
func (s *TwilioSender) AlertEmergencyContacts(ctx context.Context, pwid models.PWID, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := alertBody(pwid.Name, address)
	var failed int
	for _, contact := range pwid.EmergencyContacts {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(contact.PhoneNumber)
		params.SetFrom(s.fromNumber)
		params.SetBody(body)

		if _, err := s.client.Api.CreateMessage(params); err != nil {
			slog.Error("TwilioSender.AlertEmergencyContacts: send failed", "error", err, "to", contact.PhoneNumber, "pwid", pwid.Name)
			failed++
			continue
		}
		slog.Debug("TwilioSender.AlertEmergencyContacts: alert sent", "to", contact.PhoneNumber, "pwid", pwid.Name)
	}
	if failed > 0 {
		return fmt.Errorf("failed to alert %d of %d emergency contacts", failed, len(pwid.EmergencyContacts))
	}
	return nil
}

func alertBody(pwidName, address string) string {
	return fmt.Sprintf(
		"ConnectID alert: %s has issued a distress signal near %s. A responder is being arranged. Please check in on them if you can.",
		pwidName, address,
	)
}

// NoopSender discards alerts. Used when Twilio credentials are not
// configured.
type NoopSender struct{}

func (NoopSender) AlertEmergencyContacts(ctx context.Context, pwid models.PWID, address string) error {
	slog.Debug("NoopSender.AlertEmergencyContacts: alerts disabled", "pwid", pwid.Name)
	return nil
}

// MockSender records alerts for tests.
type MockSender struct {
	Alerts []MockAlert
	Err    error
}

// MockAlert is one recorded alert request.
type MockAlert struct {
	PWID    models.PWID
	Address string
}

func (m *MockSender) AlertEmergencyContacts(ctx context.Context, pwid models.PWID, address string) error {
	m.Alerts = append(m.Alerts, MockAlert{PWID: pwid, Address: address})
	return m.Err
}
