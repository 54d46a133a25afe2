package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ConnectID-SG/connectid/internal/models"
)

func testPWID() models.PWID {
	return models.PWID{
		ID:                 "pwid-1",
		Name:               "Ben",
		LanguagePreference: "english",
		GenderPreference:   "female",
		MedicalConditions:  []string{"Down syndrome"},
		EmergencyContacts: []models.EmergencyContact{
			{Name: "Mary", PhoneNumber: "+6598761234", Relationship: "mother"},
		},
		Location: models.Location{Latitude: 1.30, Longitude: 103.80, Address: "Bishan, (S)570123"},
	}
}

func testResponder(id int64) models.Responder {
	return models.Responder{
		ID:          id,
		Name:        "Alice",
		Languages:   []string{"english"},
		Gender:      "female",
		IsAvailable: true,
		Location:    models.Location{Latitude: 1.31, Longitude: 103.81},
		State:       models.StateNoop,
		MedicalKnowledge: []models.MedicalKnowledge{
			{Condition: "Down syndrome", CreatedAt: time.Now().UTC()},
		},
		LastMessageID: models.NoMessageID,
	}
}

func testDistress(id string, pwid models.PWID) models.Distress {
	return models.Distress{
		ID:                 id,
		GroupChatMessageID: models.NoMessageID,
		MessageID:          models.NoMessageID,
		Location:           pwid.Location,
		PWID:               pwid,
		CreatedAt:          time.Now().UTC(),
	}
}

// runStoreSuite exercises the full Store contract against any backend.
func runStoreSuite(t *testing.T, s Store) {
	t.Helper()

	// PWID round trip and duplicate handling.
	pwid := testPWID()
	if err := s.CreatePWID(pwid); err != nil {
		t.Fatalf("CreatePWID: %v", err)
	}
	if err := s.CreatePWID(pwid); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate CreatePWID: expected ErrAlreadyExists, got %v", err)
	}
	got, err := s.GetPWIDByName("Ben")
	if err != nil {
		t.Fatalf("GetPWIDByName: %v", err)
	}
	if got.LanguagePreference != "english" || len(got.EmergencyContacts) != 1 {
		t.Errorf("PWID round trip mismatch: %+v", got)
	}
	if _, err := s.GetPWIDByName("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing PWID: expected ErrNotFound, got %v", err)
	}

	// Responder round trip, update and availability filter.
	responder := testResponder(1001)
	if err := s.CreateResponder(responder); err != nil {
		t.Fatalf("CreateResponder: %v", err)
	}
	if err := s.CreateResponder(responder); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate CreateResponder: expected ErrAlreadyExists, got %v", err)
	}
	offDuty := testResponder(1002)
	offDuty.IsAvailable = false
	if err := s.CreateResponder(offDuty); err != nil {
		t.Fatalf("CreateResponder: %v", err)
	}
	available, err := s.ListAvailableResponders()
	if err != nil {
		t.Fatalf("ListAvailableResponders: %v", err)
	}
	if len(available) != 1 || available[0].ID != 1001 {
		t.Errorf("expected only responder 1001 available, got %+v", available)
	}

	responder.IsAvailable = false
	if err := s.UpdateResponder(responder); err != nil {
		t.Fatalf("UpdateResponder: %v", err)
	}
	available, err = s.ListAvailableResponders()
	if err != nil {
		t.Fatalf("ListAvailableResponders: %v", err)
	}
	if len(available) != 0 {
		t.Errorf("expected no available responders after check-out, got %+v", available)
	}
	missing := testResponder(9999)
	if err := s.UpdateResponder(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateResponder on missing record: expected ErrNotFound, got %v", err)
	}

	// Distress round trip, group-message lookup and unresolved filter.
	d1 := testDistress("distress-1", pwid)
	if err := s.CreateDistress(d1); err != nil {
		t.Fatalf("CreateDistress: %v", err)
	}
	d2 := testDistress("distress-2", pwid)
	d2.CreatedAt = d1.CreatedAt.Add(time.Second)
	assigned := testResponder(1001)
	d2.Responder = &assigned
	d2.GroupChatMessageID = 555
	if err := s.CreateDistress(d2); err != nil {
		t.Fatalf("CreateDistress: %v", err)
	}

	loaded, err := s.GetDistress("distress-2")
	if err != nil {
		t.Fatalf("GetDistress: %v", err)
	}
	if loaded.Responder == nil || loaded.Responder.ID != 1001 {
		t.Errorf("distress responder snapshot lost: %+v", loaded)
	}
	byMsg, err := s.GetDistressByGroupMessageID(555)
	if err != nil {
		t.Fatalf("GetDistressByGroupMessageID: %v", err)
	}
	if byMsg.ID != "distress-2" {
		t.Errorf("expected distress-2 by group message id, got %s", byMsg.ID)
	}

	unresolved, err := s.ListUnresolvedDistress()
	if err != nil {
		t.Fatalf("ListUnresolvedDistress: %v", err)
	}
	if len(unresolved) != 1 || unresolved[0].ID != "distress-1" {
		t.Errorf("expected only distress-1 unresolved, got %+v", unresolved)
	}

	// Acknowledged signals drop out of the unresolved set even without a responder.
	d1.IsAcknowledged = true
	d1.AcknowledgedAt = time.Now().UTC()
	if err := s.UpdateDistress(d1); err != nil {
		t.Fatalf("UpdateDistress: %v", err)
	}
	unresolved, err = s.ListUnresolvedDistress()
	if err != nil {
		t.Fatalf("ListUnresolvedDistress: %v", err)
	}
	if len(unresolved) != 0 {
		t.Errorf("expected no unresolved signals, got %+v", unresolved)
	}

	ghost := testDistress("ghost", pwid)
	if err := s.UpdateDistress(ghost); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateDistress on missing record: expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	runStoreSuite(t, NewInMemoryStore())
}

func TestInMemoryStoreSnapshotIsolation(t *testing.T) {
	s := NewInMemoryStore()
	pwid := testPWID()
	d := testDistress("distress-1", pwid)
	assigned := testResponder(1001)
	d.Responder = &assigned
	if err := s.CreateDistress(d); err != nil {
		t.Fatalf("CreateDistress: %v", err)
	}

	// Mutating the snapshot after persisting must not alter the stored record.
	assigned.Name = "changed"
	loaded, err := s.GetDistress("distress-1")
	if err != nil {
		t.Fatalf("GetDistress: %v", err)
	}
	if loaded.Responder.Name != "Alice" {
		t.Errorf("stored snapshot mutated through shared pointer: %q", loaded.Responder.Name)
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "connectid.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	runStoreSuite(t, s)
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error when DSN is not set")
	}
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to enable.
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := NewPostgresStore(WithDSN(dsn))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()
	s.db.Exec("DELETE FROM distress_signals")
	s.db.Exec("DELETE FROM responders")
	s.db.Exec("DELETE FROM pwids")
	runStoreSuite(t, s)
}
