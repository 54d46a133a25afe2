// Package store provides storage backends for ConnectID.
//
// It includes an in-memory store used by tests and development, plus
// SQLite and PostgreSQL backed stores. Nested documents (locations,
// contacts, medical knowledge, signal snapshots) are persisted as JSON
// columns so the relational backends behave like a document store.
package store

import (
	"errors"

	"github.com/ConnectID-SG/connectid/internal/models"
)

// Error variables surfaced to callers. Handlers map these to 404/409.
var (
	// ErrNotFound indicates the referenced PWID, responder or distress
	// record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a duplicate create was attempted.
	ErrAlreadyExists = errors.New("record already exists")
)

// Store defines the persistence operations consumed by the dispatch
// controller, the onboarding flow and the HTTP handlers.
type Store interface {
	// GetPWIDByName returns the PWID registered under name, or ErrNotFound.
	GetPWIDByName(name string) (*models.PWID, error)
	// CreatePWID stores a new PWID; ErrAlreadyExists if the name is taken.
	CreatePWID(p models.PWID) error

	// GetResponder returns the responder with the given chat id, or ErrNotFound.
	GetResponder(id int64) (*models.Responder, error)
	// CreateResponder stores a new responder; ErrAlreadyExists on duplicate id.
	CreateResponder(r models.Responder) error
	// UpdateResponder saves the full responder document; ErrNotFound if absent.
	UpdateResponder(r models.Responder) error
	// ListAvailableResponders returns responders with is_available set.
	ListAvailableResponders() ([]models.Responder, error)

	// CreateDistress stores a new distress record keyed by its UUID.
	CreateDistress(d models.Distress) error
	// GetDistress returns the distress record with the given UUID, or ErrNotFound.
	GetDistress(id string) (*models.Distress, error)
	// GetDistressByGroupMessageID looks a record up by the dispatcher
	// group-chat message id attached when the signal was broadcast.
	GetDistressByGroupMessageID(messageID int) (*models.Distress, error)
	// UpdateDistress saves the full distress document; ErrNotFound if absent.
	UpdateDistress(d models.Distress) error
	// ListUnresolvedDistress returns records that are not acknowledged and
	// have no responder assigned, in creation order.
	ListUnresolvedDistress() ([]models.Distress, error)

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string or file path.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}
