package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ConnectID-SG/connectid/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// encodeDoc marshals a nested document for storage in a JSON column.
func encodeDoc(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(data), nil
}

// decodeDoc unmarshals a JSON column into the given value. Empty columns
// are left as the zero value.
func decodeDoc(data string, v interface{}) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// scanPWID scans a PWID row in column order
// (id, name, language_preference, phone_number, medical_conditions, nric,
// address, date_of_birth, gender, gender_preference, emergency_contacts, location).
func scanPWID(rs rowScanner) (models.PWID, error) {
	var p models.PWID
	var conditionsJSON, contactsJSON, locationJSON string
	err := rs.Scan(
		&p.ID, &p.Name, &p.LanguagePreference, &p.PhoneNumber, &conditionsJSON,
		&p.NRIC, &p.Address, &p.DateOfBirth, &p.Gender, &p.GenderPreference,
		&contactsJSON, &locationJSON,
	)
	if err != nil {
		return p, err
	}
	if err := decodeDoc(conditionsJSON, &p.MedicalConditions); err != nil {
		return p, err
	}
	if err := decodeDoc(contactsJSON, &p.EmergencyContacts); err != nil {
		return p, err
	}
	if err := decodeDoc(locationJSON, &p.Location); err != nil {
		return p, err
	}
	return p, nil
}

// scanResponder scans a responder row in column order
// (id, name, languages, phone_number, nric, address, date_of_birth, gender,
// medical_knowledge, is_available, location, state, last_message_id).
func scanResponder(rs rowScanner) (models.Responder, error) {
	var r models.Responder
	var languagesJSON, knowledgeJSON, locationJSON string
	var state int
	err := rs.Scan(
		&r.ID, &r.Name, &languagesJSON, &r.PhoneNumber, &r.NRIC, &r.Address,
		&r.DateOfBirth, &r.Gender, &knowledgeJSON, &r.IsAvailable,
		&locationJSON, &state, &r.LastMessageID,
	)
	if err != nil {
		return r, err
	}
	r.State = models.OnboardState(state)
	if err := decodeDoc(languagesJSON, &r.Languages); err != nil {
		return r, err
	}
	if err := decodeDoc(knowledgeJSON, &r.MedicalKnowledge); err != nil {
		return r, err
	}
	if err := decodeDoc(locationJSON, &r.Location); err != nil {
		return r, err
	}
	return r, nil
}

// scanDistress scans a distress row in column order
// (id, group_chat_message_id, message_id, location, pwid, responder,
// created_at, acknowledged_at, is_acknowledged, is_completed).
func scanDistress(rs rowScanner) (models.Distress, error) {
	var d models.Distress
	var locationJSON, pwidJSON string
	var responderJSON sql.NullString
	var acknowledgedAt sql.NullTime
	err := rs.Scan(
		&d.ID, &d.GroupChatMessageID, &d.MessageID, &locationJSON, &pwidJSON,
		&responderJSON, &d.CreatedAt, &acknowledgedAt, &d.IsAcknowledged, &d.IsCompleted,
	)
	if err != nil {
		return d, err
	}
	if err := decodeDoc(locationJSON, &d.Location); err != nil {
		return d, err
	}
	if err := decodeDoc(pwidJSON, &d.PWID); err != nil {
		return d, err
	}
	if responderJSON.Valid && responderJSON.String != "" {
		var responder models.Responder
		if err := decodeDoc(responderJSON.String, &responder); err != nil {
			return d, err
		}
		d.Responder = &responder
	}
	if acknowledgedAt.Valid {
		d.AcknowledgedAt = acknowledgedAt.Time
	}
	return d, nil
}

// distressColumns assembles the writable column values for a distress
// record, shared by the SQLite and Postgres backends.
func distressColumns(d models.Distress) (locationJSON, pwidJSON string, responderJSON interface{}, acknowledgedAt interface{}, err error) {
	locationJSON, err = encodeDoc(d.Location)
	if err != nil {
		return "", "", nil, nil, err
	}
	pwidJSON, err = encodeDoc(d.PWID)
	if err != nil {
		return "", "", nil, nil, err
	}
	if d.Responder != nil {
		encoded, encErr := encodeDoc(d.Responder)
		if encErr != nil {
			return "", "", nil, nil, encErr
		}
		responderJSON = encoded
	}
	if !d.AcknowledgedAt.IsZero() {
		acknowledgedAt = d.AcknowledgedAt
	}
	return locationJSON, pwidJSON, responderJSON, acknowledgedAt, nil
}
