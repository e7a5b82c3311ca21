package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RetryMessage is a failed settlement handed to the retry transport.
type RetryMessage struct {
	MessageID  string
	Payload    ReservationTokenPayload
	OccurredAt time.Time
	Reason     string
}

// RetryDelivery is one delivery of a retry message to a consumer.
// Body is kept raw so a malformed message can still be escalated.
type RetryDelivery struct {
	ID            int64
	MessageID     string
	Body          json.RawMessage
	OccurredAt    time.Time
	DeliveryCount int
}

// FailureStatus is the reconciliation state of a failure log entry.
type FailureStatus string

const (
	FailureStatusPending   FailureStatus = "PENDING"
	FailureStatusReplaying FailureStatus = "REPLAYING"
	FailureStatusResolved  FailureStatus = "RESOLVED"
)

// Valid reports whether s is one of the known statuses.
func (s FailureStatus) Valid() bool {
	switch s {
	case FailureStatusPending, FailureStatusReplaying, FailureStatusResolved:
		return true
	}
	return false
}

// FailureLogEntry is a settlement that could not be completed automatically.
// Entries are deduplicated on IdentityKey. RawBody holds the verbatim retry
// message when it could not be decoded into a payload.
type FailureLogEntry struct {
	ID                 int64                   `json:"id"`
	IdentityKey        string                  `json:"identity_key"`
	UserID             int64                   `json:"user_id"`
	CampaignActivityID int64                   `json:"campaign_activity_id"`
	ProductID          int64                   `json:"product_id"`
	Payload            ReservationTokenPayload `json:"payload"`
	Reason             string                  `json:"reason"`
	Kind               string                  `json:"kind"`
	AttemptCount       int                     `json:"attempt_count"`
	Status             FailureStatus           `json:"status"`
	FirstSeenAt        time.Time               `json:"first_seen_at"`
	LastSeenAt         time.Time               `json:"last_seen_at"`
	RawBody            string                  `json:"raw_body,omitempty"`
}

// PayloadIdentityKey identifies the failure log entry of a decoded payload.
func PayloadIdentityKey(p ReservationTokenPayload) string {
	return fmt.Sprintf("payload:%d:%d:%d", p.UserID, p.CampaignActivityID, p.ProductID)
}

const messageIdentityPrefix = "message:"

// MessageIdentityKey identifies the failure log entry of a retry message
// whose body could not be decoded.
func MessageIdentityKey(messageID string) string {
	return messageIdentityPrefix + messageID
}

// Undecodable reports whether e records a retry message without a usable
// payload.
func (e FailureLogEntry) Undecodable() bool {
	return strings.HasPrefix(e.IdentityKey, messageIdentityPrefix)
}

// FailureLogFilter narrows a failure log listing. Zero values match everything.
type FailureLogFilter struct {
	Status             FailureStatus `query:"status" json:"status" validate:"omitempty,oneof=PENDING REPLAYING RESOLVED"`
	CampaignActivityID int64         `query:"activity_id" json:"activity_id" validate:"gte=0"`
	UserID             int64         `query:"user_id" json:"user_id" validate:"gte=0"`
	Limit              int           `query:"limit" json:"limit" validate:"gte=0,lte=500"`
}
