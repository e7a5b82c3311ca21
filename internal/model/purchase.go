package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseType distinguishes sold admissions from free rewards.
type PurchaseType string

const (
	PurchaseTypeCampaignActivity PurchaseType = "CAMPAIGN_ACTIVITY"
	PurchaseTypeReward           PurchaseType = "REWARD"
)

// Purchase is the durable record of a settled reservation.
type Purchase struct {
	ID                 int64           `json:"id"`
	CampaignActivityID int64           `json:"campaign_activity_id"`
	UserID             int64           `json:"user_id"`
	ProductID          int64           `json:"product_id"`
	PurchaseType       PurchaseType    `json:"purchase_type"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Quantity           int             `json:"quantity"`
	OccurredAt         time.Time       `json:"occurred_at"`
	PurchasedAt        time.Time       `json:"purchased_at"`
}
