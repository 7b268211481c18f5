package model

import "time"

// Plan is a subscription tier. Limits are derived from the plan unless a
// per-user override exists (§4.L); -1 denotes unlimited.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// SubscriptionStatus tracks whether a Subscription is currently billable.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
)

// PlanLimits defines per-metric ceilings for a plan. -1 means unlimited.
type PlanLimits struct {
	APICallsPerMinute int64
	APICallsPerDay    int64
	DocumentsPerMonth int64
	AIRequestsPerDay  int64
	StorageMB         int64
	KnowledgeBases    int64
}

// Subscription binds a user to a plan, optionally overridden per-user.
type Subscription struct {
	User    string             `json:"user"`
	Plan    Plan               `json:"plan"`
	Status  SubscriptionStatus `json:"status"`
	Limits  *PlanLimits        `json:"limits,omitempty"` // non-nil only when overriding the plan default
}

// UsageRecord counts a user's activity for one calendar-month period. The
// (user, period_start) pair is unique, preventing duplicate rows under
// concurrent first-touch creation (§3, §4.L).
type UsageRecord struct {
	User              string    `json:"user"`
	SubscriptionID    string    `json:"subscriptionId"`
	PeriodStart       time.Time `json:"periodStart"`
	PeriodEnd         time.Time `json:"periodEnd"`
	APICalls          int64     `json:"apiCalls"`
	DocumentsUploaded int64     `json:"documentsUploaded"`
	AIRequests        int64     `json:"aiRequests"`
	StorageBytes      int64     `json:"storageBytes"`
	SearchQueries     int64     `json:"searchQueries"`
	BuildSuggestions  int64     `json:"buildSuggestions"`
}
