package model

import (
	"errors"
	"time"
)

// ReservationTokenPayload is the purchase intent carried by a reservation token.
// It is also the message body on the payment retry transport.
type ReservationTokenPayload struct {
	UserID               int64        `json:"userId"`
	CampaignActivityID   int64        `json:"campaignActivityId"`
	ProductID            int64        `json:"productId"`
	CampaignActivityType ActivityType `json:"campaignActivityType"`
	Quantity             int          `json:"quantity"`
}

// Validate checks that every field of the payload is present.
func (p ReservationTokenPayload) Validate() error {
	switch {
	case p.UserID <= 0:
		return errors.New("userId is required")
	case p.CampaignActivityID <= 0:
		return errors.New("campaignActivityId is required")
	case p.ProductID <= 0:
		return errors.New("productId is required")
	case !p.CampaignActivityType.Valid():
		return errors.New("campaignActivityType is invalid")
	case p.Quantity <= 0:
		return errors.New("quantity must be positive")
	}
	return nil
}

// ReservationToken is an issued token together with its redemption state.
type ReservationToken struct {
	Token      string
	Payload    ReservationTokenPayload
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RedeemedAt *time.Time
}

// AdmissionRequest is a user's attempt to take a slot of an activity.
type AdmissionRequest struct {
	ActivityID int64 `json:"activity_id" validate:"required,gt=0"`
	UserID     int64 `json:"user_id" validate:"required,gt=0"`
	ProductID  int64 `json:"product_id" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"required,gte=1,lte=100"`
}

// AdmissionSlot is a granted admission as recorded by the capacity ledger.
type AdmissionSlot struct {
	ActivityID   int64
	CampaignID   int64
	UserID       int64
	ProductID    int64
	ActivityType ActivityType
	Quantity     int
	Order        int
	Remaining    int
	AdmittedAt   time.Time
}

// AdmissionResponse is the API response DTO for a granted admission.
type AdmissionResponse struct {
	Token     string                  `json:"token"`
	Order     int                     `json:"order"`
	ExpiresAt time.Time               `json:"expires_at"`
	Payload   ReservationTokenPayload `json:"payload"`
}

// ConfirmPaymentRequest is the DTO for settling a reservation token.
type ConfirmPaymentRequest struct {
	Token  string `json:"token" validate:"required,notblank,max=512"`
	UserID int64  `json:"user_id" validate:"required,gt=0"`
}

// ActivityLogEntry is the audit record written after an admission.
type ActivityLogEntry struct {
	ActivityID int64
	UserID     int64
	ProductID  int64
	Quantity   int
	Order      int
	AdmittedAt time.Time
}
