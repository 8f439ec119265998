package types

import (
	"time"

	"github.com/samber/lo"
)

// QueryFilter is the pagination part of every list filter
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty" validate:"omitempty,min=1,max=1000"`
	Offset *int    `json:"offset,omitempty" validate:"omitempty,min=0"`
	Status *Status `json:"status,omitempty"`
}

// NewDefaultQueryFilter returns the first page of published rows
func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(50),
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
	}
}

// NewNoLimitQueryFilter returns a filter with no pagination limits
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
	}
}

// IsUnlimited returns true if this is an unlimited query
func (f *QueryFilter) IsUnlimited() bool {
	return f == nil || f.Limit == nil
}

// GetLimit returns the limit, 0 when unlimited
func (f *QueryFilter) GetLimit() int {
	if f.IsUnlimited() {
		return 0
	}
	return *f.Limit
}

// GetOffset returns the offset value or 0
func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset == nil {
		return 0
	}
	return *f.Offset
}

// GetStatus returns the status filter, published by default
func (f *QueryFilter) GetStatus() Status {
	if f == nil || f.Status == nil {
		return StatusPublished
	}
	return *f.Status
}

// SubscriptionFilter narrows subscription listings
type SubscriptionFilter struct {
	*QueryFilter
	PlanID       string `json:"plan_id,omitempty"`
	SubscriberID string `json:"subscriber_id,omitempty"`
	// PaidOnly keeps subscriptions with a paid-through date
	PaidOnly bool `json:"paid_only,omitempty"`
	// PaidThroughBefore keeps subscriptions whose paid-through date is strictly before it
	PaidThroughBefore *time.Time `json:"paid_through_before,omitempty"`
}

// NewSubscriptionFilter returns an unlimited subscription filter
func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{QueryFilter: NewNoLimitQueryFilter()}
}

// PlanFilter narrows plan listings
type PlanFilter struct {
	*QueryFilter
	PlanIDs  []string `json:"plan_ids,omitempty"`
	FreeOnly bool     `json:"free_only,omitempty"`
}

// NewPlanFilter returns an unlimited plan filter
func NewPlanFilter() *PlanFilter {
	return &PlanFilter{QueryFilter: NewNoLimitQueryFilter()}
}
