// Package store provides storage backends for ConnectID.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/ConnectID-SG/connectid/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetPWIDByName(name string) (*models.PWID, error) {
	row := s.db.QueryRow(`SELECT id, name, language_preference, phone_number, medical_conditions, nric,
		address, date_of_birth, gender, gender_preference, emergency_contacts, location
		FROM pwids WHERE name = $1`, name)
	p, err := scanPWID(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetPWIDByName failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to load pwid %s: %w", name, err)
	}
	return &p, nil
}

func (s *PostgresStore) CreatePWID(p models.PWID) error {
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
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM pwids WHERE name = $1`, p.Name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check existing pwid: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}

	_, err = s.db.Exec(`INSERT INTO pwids (id, name, language_preference, phone_number, medical_conditions,
		nric, address, date_of_birth, gender, gender_preference, emergency_contacts, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Name, p.LanguagePreference, p.PhoneNumber, conditionsJSON,
		p.NRIC, p.Address, p.DateOfBirth, p.Gender, p.GenderPreference, contactsJSON, locationJSON)
	if err != nil {
		slog.Error("PostgresStore CreatePWID failed", "error", err, "name", p.Name)
		return fmt.Errorf("failed to insert pwid %s: %w", p.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetResponder(id int64) (*models.Responder, error) {
	row := s.db.QueryRow(`SELECT id, name, languages, phone_number, nric, address, date_of_birth,
		gender, medical_knowledge, is_available, location, state, last_message_id
		FROM responders WHERE id = $1`, id)
	r, err := scanResponder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetResponder failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load responder %d: %w", id, err)
	}
	return &r, nil
}

func (s *PostgresStore) CreateResponder(r models.Responder) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM responders WHERE id = $1`, r.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check existing responder: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}
	return s.writeResponder(`INSERT INTO responders (name, languages, phone_number, nric, address,
		date_of_birth, gender, medical_knowledge, is_available, location, state, last_message_id, id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, r)
}

func (s *PostgresStore) UpdateResponder(r models.Responder) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM responders WHERE id = $1`, r.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check existing responder: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.writeResponder(`UPDATE responders SET name = $1, languages = $2, phone_number = $3, nric = $4,
		address = $5, date_of_birth = $6, gender = $7, medical_knowledge = $8, is_available = $9,
		location = $10, state = $11, last_message_id = $12 WHERE id = $13`, r)
}

func (s *PostgresStore) writeResponder(query string, r models.Responder) error {
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
		slog.Error("PostgresStore writeResponder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to write responder %d: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListAvailableResponders() ([]models.Responder, error) {
	rows, err := s.db.Query(`SELECT id, name, languages, phone_number, nric, address, date_of_birth,
		gender, medical_knowledge, is_available, location, state, last_message_id
		FROM responders WHERE is_available = TRUE ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListAvailableResponders query failed", "error", err)
		return nil, fmt.Errorf("failed to query available responders: %w", err)
	}
	defer rows.Close()

	var responders []models.Responder
	for rows.Next() {
		r, err := scanResponder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan responder row: %w", err)
		}
		responders = append(responders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responder rows: %w", err)
	}
	return responders, nil
}

func (s *PostgresStore) CreateDistress(d models.Distress) error {
	locationJSON, pwidJSON, responderJSON, acknowledgedAt, err := distressColumns(d)
	if err != nil {
		return err
	}
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM distress_signals WHERE id = $1`, d.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check existing distress: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}
	_, err = s.db.Exec(`INSERT INTO distress_signals (id, group_chat_message_id, message_id, location,
		pwid, responder, created_at, acknowledged_at, is_acknowledged, is_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.GroupChatMessageID, d.MessageID, locationJSON, pwidJSON, responderJSON,
		d.CreatedAt, acknowledgedAt, d.IsAcknowledged, d.IsCompleted)
	if err != nil {
		slog.Error("PostgresStore CreateDistress failed", "error", err, "id", d.ID)
		return fmt.Errorf("failed to insert distress %s: %w", d.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetDistress(id string) (*models.Distress, error) {
	row := s.db.QueryRow(`SELECT id, group_chat_message_id, message_id, location, pwid, responder,
		created_at, acknowledged_at, is_acknowledged, is_completed
		FROM distress_signals WHERE id = $1`, id)
	d, err := scanDistress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetDistress failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load distress %s: %w", id, err)
	}
	return &d, nil
}

func (s *PostgresStore) GetDistressByGroupMessageID(messageID int) (*models.Distress, error) {
	row := s.db.QueryRow(`SELECT id, group_chat_message_id, message_id, location, pwid, responder,
		created_at, acknowledged_at, is_acknowledged, is_completed
		FROM distress_signals WHERE group_chat_message_id = $1`, messageID)
	d, err := scanDistress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetDistressByGroupMessageID failed", "error", err, "messageID", messageID)
		return nil, fmt.Errorf("failed to load distress by group message %d: %w", messageID, err)
	}
	return &d, nil
}

func (s *PostgresStore) UpdateDistress(d models.Distress) error {
	locationJSON, pwidJSON, responderJSON, acknowledgedAt, err := distressColumns(d)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE distress_signals SET group_chat_message_id = $1, message_id = $2,
		location = $3, pwid = $4, responder = $5, created_at = $6, acknowledged_at = $7,
		is_acknowledged = $8, is_completed = $9 WHERE id = $10`,
		d.GroupChatMessageID, d.MessageID, locationJSON, pwidJSON, responderJSON,
		d.CreatedAt, acknowledgedAt, d.IsAcknowledged, d.IsCompleted, d.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateDistress failed", "error", err, "id", d.ID)
		return fmt.Errorf("failed to update distress %s: %w", d.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUnresolvedDistress() ([]models.Distress, error) {
	rows, err := s.db.Query(`SELECT id, group_chat_message_id, message_id, location, pwid, responder,
		created_at, acknowledged_at, is_acknowledged, is_completed
		FROM distress_signals WHERE is_acknowledged = FALSE AND responder IS NULL ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListUnresolvedDistress query failed", "error", err)
		return nil, fmt.Errorf("failed to query unresolved distress: %w", err)
	}
	defer rows.Close()

	var signals []models.Distress
	for rows.Next() {
		d, err := scanDistress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan distress row: %w", err)
		}
		signals = append(signals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate distress rows: %w", err)
	}
	return signals, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
