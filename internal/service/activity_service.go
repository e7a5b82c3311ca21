package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// ActivityService provides operator operations on campaign activities.
type ActivityService struct {
	activityRepo ActivityRepositoryInterface
	participants ParticipantRepositoryInterface
}

// NewActivityService creates a new ActivityService with the given repositories.
func NewActivityService(activityRepo ActivityRepositoryInterface, participants ParticipantRepositoryInterface) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		participants: participants,
	}
}

// Create schedules a new activity in DRAFT with its full capacity remaining.
// Returns ErrInvalidPayload if request data is nil or incomplete.
func (s *ActivityService) Create(ctx context.Context, req *model.CreateActivityRequest) (*model.CampaignActivity, error) {
	// Defense-in-depth: check for nil pointer even though handler validates
	if req == nil || req.LimitCount == nil || *req.LimitCount <= 0 {
		return nil, ErrInvalidPayload
	}

	price := decimal.Zero
	if req.Price != "" {
		p, err := decimal.NewFromString(req.Price)
		if err != nil || p.IsNegative() {
			return nil, fmt.Errorf("%w: price must be a non-negative decimal", ErrInvalidPayload)
		}
		price = p
	}
	if req.ActivityType.IsPurchaseRelated() && !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s activities need a price", ErrInvalidPayload, req.ActivityType)
	}

	filters := req.Filters
	if filters == nil {
		filters = []model.FilterDetail{}
	}

	activity := &model.CampaignActivity{
		CampaignID:     req.CampaignID,
		ProductID:      req.ProductID,
		Name:           req.Name,
		ActivityType:   req.ActivityType,
		LimitCount:     *req.LimitCount,
		RemainingCount: *req.LimitCount,
		Status:         model.ActivityStatusDraft,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Price:          price,
		Filters:        filters,
	}
	if err := s.activityRepo.Insert(ctx, activity); err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return activity, nil
}

// GetByID retrieves an activity with its participant count.
// Returns ErrActivityNotFound if the activity doesn't exist.
func (s *ActivityService) GetByID(ctx context.Context, id int64) (*model.ActivityResponse, error) {
	activity, err := s.activityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}

	count, err := s.participants.CountByActivity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}

	return &model.ActivityResponse{
		CampaignActivity: *activity,
		ParticipantCount: count,
	}, nil
}

// ChangeStatus moves an activity to a new phase. DRAFT is never re-entered
// and ENDED is final.
// Returns ErrActivityNotFound or ErrInvalidTransition.
func (s *ActivityService) ChangeStatus(ctx context.Context, id int64, to model.ActivityStatus) (*model.CampaignActivity, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, to)
	}

	activity, err := s.activityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if activity.Status == to {
		return activity, nil
	}
	if activity.Status == model.ActivityStatusEnded {
		return nil, fmt.Errorf("%w: activity %d has ended", ErrInvalidTransition, id)
	}
	if to == model.ActivityStatusDraft {
		return nil, fmt.Errorf("%w: activity %d cannot return to draft", ErrInvalidTransition, id)
	}

	if err := s.activityRepo.UpdateStatus(ctx, id, activity.Status, to); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	activity.Status = to
	return activity, nil
}
