package store

import (
	"time"
)

// DedupRecord remembers an inbound activity so redelivered webhooks and
// transport retries are handled once.
type DedupRecord struct {
	MessageID     string     `json:"message_id"`
	ParticipantID string     `json:"participant_id"`
	ReceivedAt    time.Time  `json:"received_at"`
	ProcessedAt   *time.Time `json:"processed_at"`
}

// DedupRepo defines the interface for inbound message deduplication.
type DedupRepo interface {
	// IsDuplicate reports whether messageID was already recorded.
	IsDuplicate(messageID string) (bool, error)

	// RecordInbound inserts a new inbound message record. Returns false if the
	// message was already recorded.
	RecordInbound(messageID, participantID string) (bool, error)

	// MarkProcessed sets the processed_at timestamp for a message.
	MarkProcessed(messageID string) error

	// ForgetInbound deletes the record of one message so that a redelivery
	// is processed again.
	ForgetInbound(messageID string) error

	// PurgeInbound deletes records received before cutoff and returns how
	// many were removed.
	PurgeInbound(cutoff time.Time) (int64, error)
}
