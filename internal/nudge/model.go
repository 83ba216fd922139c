package nudge

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a kind of behavioral nudge. The set is closed: the risk
// assessor, the scorer's bias table and the category mapping all key off it,
// so adding a kind is a single-source change here.
type Type string

const (
	TypeSleepDeficit        Type = "sleep_deficit"
	TypeMoodSupport         Type = "mood_support"
	TypeDecliningScore      Type = "declining_score"
	TypeMissingLog          Type = "missing_log"
	TypeConsistencyTip      Type = "consistency_tip"
	TypeAppointmentReminder Type = "appointment_reminder"
	TypeSymptomFollowup     Type = "symptom_followup"
	TypeImprovingScore      Type = "improving_score"
	TypeStreakCelebration   Type = "streak_celebration"
	TypeGeneralCheckin      Type = "general_checkin"
)

// AllTypes lists every nudge type in declaration order.
func AllTypes() []Type {
	return []Type{
		TypeSleepDeficit,
		TypeMoodSupport,
		TypeDecliningScore,
		TypeMissingLog,
		TypeConsistencyTip,
		TypeAppointmentReminder,
		TypeSymptomFollowup,
		TypeImprovingScore,
		TypeStreakCelebration,
		TypeGeneralCheckin,
	}
}

// Priority of a nudge.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status of a persisted care nudge.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDismissed Status = "dismissed"
	StatusExpired   Status = "expired"
)

// OpenStatuses are the non-terminal statuses considered for deduplication.
var OpenStatuses = []Status{StatusPending, StatusActive}

// Category groups nudge types for presentation.
type Category string

const (
	CategoryReminder    Category = "reminder"
	CategoryAlert       Category = "alert"
	CategoryCelebration Category = "celebration"
	CategorySuggestion  Category = "suggestion"
)

var typeCategories = map[Type]Category{
	TypeMissingLog:          CategoryReminder,
	TypeAppointmentReminder: CategoryReminder,
	TypeDecliningScore:      CategoryAlert,
	TypeSymptomFollowup:     CategoryAlert,
	TypeImprovingScore:      CategoryCelebration,
	TypeStreakCelebration:   CategoryCelebration,
}

// CategoryFor maps a nudge type to its presentation category.
// Types without an explicit mapping are suggestions.
func CategoryFor(t Type) Category {
	if c, ok := typeCategories[t]; ok {
		return c
	}
	return CategorySuggestion
}

// ContextSnapshot captures the patient state that motivated a nudge, for
// display alongside the message.
type ContextSnapshot struct {
	HealthScore      float64  `json:"health_score"`
	HealthScoreTrend string   `json:"health_score_trend"`
	DaysSinceLastLog float64  `json:"days_since_last_log"`
	RecentLabels     []string `json:"recent_labels,omitempty"`
}

// CareNudge is the user-facing nudge entity persisted at send time.
type CareNudge struct {
	ID               uuid.UUID       `json:"id"`
	PatientID        string          `json:"patient_id"`
	Title            string          `json:"title"`
	Message          string          `json:"message"`
	Priority         Priority        `json:"priority"`
	Category         Category        `json:"category"`
	Status           Status          `json:"status"`
	GeneratedTrigger Type            `json:"generated_trigger"`
	ModelVersion     string          `json:"model_version"`
	SelectionMode    string          `json:"selection_mode"`
	ConfidenceScore  float64         `json:"confidence_score"`
	Reasoning        string          `json:"reasoning,omitempty"`
	ActionLabel      string          `json:"action_label,omitempty"`
	ActionLink       string          `json:"action_link,omitempty"`
	Context          ContextSnapshot `json:"context"`
	ScheduledFor     time.Time       `json:"scheduled_for"`
	ExpiresAt        time.Time       `json:"expires_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
