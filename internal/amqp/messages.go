package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeRecordSync   = "record.sync"
	TypeRecordDelete = "record.delete"
)

// RecordSyncMessage asks the worker to mirror one gift record to the
// backup ledger. It carries only the id and version; the worker reads
// the full row from the database.
type RecordSyncMessage struct {
	RecordID  string    `json:"record_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordDeleteMessage asks the worker to drop a record from the backup
// ledger after a soft delete.
type RecordDeleteMessage struct {
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope wraps every message with its type so one queue can carry
// both kinds.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewRecordSyncMessage(recordID string, version int64) *RecordSyncMessage {
	return &RecordSyncMessage{
		RecordID:  recordID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func NewRecordDeleteMessage(recordID string) *RecordDeleteMessage {
	return &RecordDeleteMessage{
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
}

func wrap(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(envelope{Type: msgType, Payload: raw})
}

func unwrap(body []byte) (string, json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env.Type, env.Payload, nil
}
