package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType classifies how a campaign activity hands out its slots.
type ActivityType string

const (
	ActivityTypeFirstComeFirstServe ActivityType = "FIRST_COME_FIRST_SERVE"
	ActivityTypeCoupon              ActivityType = "COUPON"
	ActivityTypeGiveaway            ActivityType = "GIVEAWAY"
)

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityTypeFirstComeFirstServe, ActivityTypeCoupon, ActivityTypeGiveaway:
		return true
	}
	return false
}

// IsPurchaseRelated reports whether admissions of this type settle money.
// Only first-come-first-serve drops are sold; coupons and giveaways are rewards.
func (t ActivityType) IsPurchaseRelated() bool {
	return t == ActivityTypeFirstComeFirstServe
}

// ActivityStatus is the lifecycle phase of a campaign activity.
type ActivityStatus string

const (
	ActivityStatusDraft  ActivityStatus = "DRAFT"
	ActivityStatusActive ActivityStatus = "ACTIVE"
	ActivityStatusPaused ActivityStatus = "PAUSED"
	ActivityStatusEnded  ActivityStatus = "ENDED"
)

// Valid reports whether s is one of the known statuses.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityStatusDraft, ActivityStatusActive, ActivityStatusPaused, ActivityStatusEnded:
		return true
	}
	return false
}

// IsAdmitting reports whether the phase accepts new admissions.
func (s ActivityStatus) IsAdmitting() bool {
	return s == ActivityStatusActive
}

// FilterDetail is one eligibility predicate attached to an activity.
// FAST filters are checked at admission; HEAVY filters run elsewhere.
type FilterDetail struct {
	Type     string   `json:"type" validate:"required"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
	Phase    string   `json:"phase" validate:"required,oneof=FAST HEAVY"`
}

// CampaignActivity represents a campaign activity in the system.
type CampaignActivity struct {
	ID             int64           `json:"id"`
	CampaignID     int64           `json:"campaign_id"`
	ProductID      int64           `json:"product_id"`
	Name           string          `json:"name"`
	ActivityType   ActivityType    `json:"activity_type"`
	LimitCount     int             `json:"limit_count"`
	RemainingCount int             `json:"remaining_count"`
	Status         ActivityStatus  `json:"status"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	Price          decimal.Decimal `json:"price"`
	Filters        []FilterDetail  `json:"filters"`
	CreatedAt      time.Time       `json:"-"`
}

// IsParticipatable reports whether the activity can admit anyone at now.
// The remaining count is only a hint here; the ledger re-checks it atomically.
func (a *CampaignActivity) IsParticipatable(now time.Time) bool {
	if a.RemainingCount <= 0 {
		return false
	}
	if !a.Status.IsAdmitting() {
		return false
	}
	if !a.StartDate.IsZero() && now.Before(a.StartDate) {
		return false
	}
	return a.EndDate.IsZero() || !now.After(a.EndDate)
}

// CreateActivityRequest is the DTO for scheduling a campaign activity.
type CreateActivityRequest struct {
	CampaignID   int64          `json:"campaign_id" validate:"required,gt=0"`
	ProductID    int64          `json:"product_id" validate:"required,gt=0"`
	Name         string         `json:"name" validate:"required,notblank,max=255"`
	ActivityType ActivityType   `json:"activity_type" validate:"required,oneof=FIRST_COME_FIRST_SERVE COUPON GIVEAWAY"`
	LimitCount   *int           `json:"limit_count" validate:"required,gte=1"`
	StartDate    time.Time      `json:"start_date" validate:"required"`
	EndDate      time.Time      `json:"end_date" validate:"required,gtfield=StartDate"`
	Price        string         `json:"price" validate:"omitempty,numeric"`
	Filters      []FilterDetail `json:"filters" validate:"omitempty,max=20,dive"`
}

// ChangeStatusRequest is the DTO for an activity phase transition.
type ChangeStatusRequest struct {
	Status ActivityStatus `json:"status" validate:"required,oneof=DRAFT ACTIVE PAUSED ENDED"`
}

// UserProfile holds the attributes eligibility filters are evaluated against.
type UserProfile struct {
	UserID int64
	Age    *int
	Grade  string
}

// ActivityResponse is the API response DTO for activity details.
type ActivityResponse struct {
	CampaignActivity
	ParticipantCount int `json:"participant_count"`
}
