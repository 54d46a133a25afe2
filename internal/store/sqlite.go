// Package store provides storage backends for ConnectID.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/ConnectID-SG/connectid/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on top of a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file; the parent
// directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetPWIDByName(name string) (*models.PWID, error) {
	row := s.db.QueryRow(`SELECT id, name, language_preference, phone_number, medical_conditions, nric,
		address, date_of_birth, gender, gender_preference, emergency_contacts, location
		FROM pwids WHERE name = ?`, name)
	p, err := scanPWID(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore GetPWIDByName not found", "name", name)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetPWIDByName failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to load pwid %s: %w", name, err)
	}
	return &p, nil
}

func (s *SQLiteStore) CreatePWID(p models.PWID) error {
	conditionsJSON, err := encodeDoc(p.MedicalConditions)
	if err != nil {
		return err
	}
	contactsJSON, err := encodeDoc(p.EmergencyContacts)
	if err != nil {
		return err
	}
	locationJSON, err := encodeDoc(p.Location)
	if err != nil {
		return err
	}

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM pwids WHERE name = ?`, p.Name).Scan(&exists); err != nil {
		slog.Error("SQLiteStore CreatePWID existence check failed", "error", err, "name", p.Name)
		return fmt.Errorf("failed to check existing pwid: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}

	_, err = s.db.Exec(`INSERT INTO pwids (id, name, language_preference, phone_number, medical_conditions,
		nric, address, date_of_birth, gender, gender_preference, emergency_contacts, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.LanguagePreference, p.PhoneNumber, conditionsJSON,
		p.NRIC, p.Address, p.DateOfBirth, p.Gender, p.GenderPreference, contactsJSON, locationJSON)
	if err != nil {
		slog.Error("SQLiteStore CreatePWID failed", "error", err, "name", p.Name)
		return fmt.Errorf("failed to insert pwid %s: %w", p.Name, err)
	}
	slog.Debug("SQLiteStore CreatePWID succeeded", "name", p.Name)
	return nil
}

func (s *SQLiteStore) GetResponder(id int64) (*models.Responder, error) {
	row := s.db.QueryRow(`SELECT id, name, languages, phone_number, nric, address, date_of_birth,
		gender, medical_knowledge, is_available, location, state, last_message_id
		FROM responders WHERE id = ?`, id)
	r, err := scanResponder(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore GetResponder not found", "id", id)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetResponder failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load responder %d: %w", id, err)
	}
	return &r, nil
}

func (s *SQLiteStore) CreateResponder(r models.Responder) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM responders WHERE id = ?`, r.ID).Scan(&exists); err != nil {
		slog.Error("SQLiteStore CreateResponder existence check failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to check existing responder: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}
	return s.writeResponder(`INSERT INTO responders (name, languages, phone_number, nric, address,
		date_of_birth, gender, medical_knowledge, is_available, location, state, last_message_id, id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r)
}

func (s *SQLiteStore) UpdateResponder(r models.Responder) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM responders WHERE id = ?`, r.ID).Scan(&exists); err != nil {
		slog.Error("SQLiteStore UpdateResponder existence check failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to check existing responder: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.writeResponder(`UPDATE responders SET name = ?, languages = ?, phone_number = ?, nric = ?,
		address = ?, date_of_birth = ?, gender = ?, medical_knowledge = ?, is_available = ?,
		location = ?, state = ?, last_message_id = ? WHERE id = ?`, r)
}

// writeResponder runs an insert or update whose parameters end with the id.
func (s *SQLiteStore) writeResponder(query string, r models.Responder) error {
	languagesJSON, err := encodeDoc(r.Languages)
	if err != nil {
		return err
	}
	knowledgeJSON, err := encodeDoc(r.MedicalKnowledge)
	if err != nil {
		return err
	}
	locationJSON, err := encodeDoc(r.Location)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(query,
		r.Name, languagesJSON, r.PhoneNumber, r.NRIC, r.Address, r.DateOfBirth,
		r.Gender, knowledgeJSON, r.IsAvailable, locationJSON, int(r.State), r.LastMessageID, r.ID)
	if err != nil {
		slog.Error("SQLiteStore writeResponder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to write responder %d: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore writeResponder succeeded", "id", r.ID)
	return nil
}

func (s *SQLiteStore) ListAvailableResponders() ([]models.Responder, error) {
	rows, err := s.db.Query(`SELECT id, name, languages, phone_number, nric, address, date_of_birth,
		gender, medical_knowledge, is_available, location, state, last_message_id
		FROM responders WHERE is_available = 1 ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListAvailableResponders query failed", "error", err)
		return nil, fmt.Errorf("failed to query available responders: %w", err)
	}
	defer rows.Close()

	var responders []models.Responder
	for rows.Next() {
		r, err := scanResponder(rows)
		if err != nil {
			slog.Error("SQLiteStore ListAvailableResponders scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan responder row: %w", err)
		}
		responders = append(responders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responder rows: %w", err)
	}
	slog.Debug("SQLiteStore ListAvailableResponders succeeded", "count", len(responders))
	return responders, nil
}

func (s *SQLiteStore) CreateDistress(d models.Distress) error {
	locationJSON, pwidJSON, responderJSON, acknowledgedAt, err := distressColumns(d)
	if err != nil {
		return err
	}
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM distress_signals WHERE id = ?`, d.ID).Scan(&exists); err != nil {
		slog.Error("SQLiteStore CreateDistress existence check failed", "error", err, "id", d.ID)
		return fmt.Errorf("failed to check existing distress: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}
	_, err = s.db.Exec(`INSERT INTO distress_signals (id, group_chat_message_id, message_id, location,
		pwid, responder, created_at, acknowledged_at, is_acknowledged, is_completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.GroupChatMessageID, d.MessageID, locationJSON, pwidJSON, responderJSON,
		d.CreatedAt, acknowledgedAt, d.IsAcknowledged, d.IsCompleted)
	if err != nil {
		slog.Error("SQLiteStore CreateDistress failed", "error", err, "id", d.ID)
		return fmt.Errorf("failed to insert distress %s: %w", d.ID, err)
	}
	slog.Debug("SQLiteStore CreateDistress succeeded", "id", d.ID)
	return nil
}

func (s *SQLiteStore) GetDistress(id string) (*models.Distress, error) {
	row := s.db.QueryRow(`SELECT id, group_chat_message_id, message_id, location, pwid, responder,
		created_at, acknowledged_at, is_acknowledged, is_completed
		FROM distress_signals WHERE id = ?`, id)
	d, err := scanDistress(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore GetDistress not found", "id", id)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetDistress failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load distress %s: %w", id, err)
	}
	return &d, nil
}

func (s *SQLiteStore) GetDistressByGroupMessageID(messageID int) (*models.Distress, error) {
	row := s.db.QueryRow(`SELECT id, group_chat_message_id, message_id, location, pwid, responder,
		created_at, acknowledged_at, is_acknowledged, is_completed
		FROM distress_signals WHERE group_chat_message_id = ?`, messageID)
	d, err := scanDistress(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore GetDistressByGroupMessageID not found", "messageID", messageID)
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetDistressByGroupMessageID failed", "error", err, "messageID", messageID)
		return nil, fmt.Errorf("failed to load distress by group message %d: %w", messageID, err)
	}
	return &d, nil
}

func (s *SQLiteStore) UpdateDistress(d models.Distress) error {
	locationJSON, pwidJSON, responderJSON, acknowledgedAt, err := distressColumns(d)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE distress_signals SET group_chat_message_id = ?, message_id = ?,
		location = ?, pwid = ?, responder = ?, created_at = ?, acknowledged_at = ?,
		is_acknowledged = ?, is_completed = ? WHERE id = ?`,
		d.GroupChatMessageID, d.MessageID, locationJSON, pwidJSON, responderJSON,
		d.CreatedAt, acknowledgedAt, d.IsAcknowledged, d.IsCompleted, d.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateDistress failed", "error", err, "id", d.ID)
		return fmt.Errorf("failed to update distress %s: %w", d.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	slog.Debug("SQLiteStore UpdateDistress succeeded", "id", d.ID)
	return nil
}

func (s *SQLiteStore) ListUnresolvedDistress() ([]models.Distress, error) {
	rows, err := s.db.Query(`SELECT id, group_chat_message_id, message_id, location, pwid, responder,
		created_at, acknowledged_at, is_acknowledged, is_completed
		FROM distress_signals WHERE is_acknowledged = 0 AND responder IS NULL ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListUnresolvedDistress query failed", "error", err)
		return nil, fmt.Errorf("failed to query unresolved distress: %w", err)
	}
	defer rows.Close()

	var signals []models.Distress
	for rows.Next() {
		d, err := scanDistress(rows)
		if err != nil {
			slog.Error("SQLiteStore ListUnresolvedDistress scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan distress row: %w", err)
		}
		signals = append(signals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate distress rows: %w", err)
	}
	slog.Debug("SQLiteStore ListUnresolvedDistress succeeded", "count", len(signals))
	return signals, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
