package features

import "time"

// Trend describes the direction of a patient's health score over the
// trailing week.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
	TrendUnknown   Trend = "unknown"
)

// NoUpcomingAppointment is the sentinel for DaysUntilNextAppointment when
// no future appointment exists.
const NoUpcomingAppointment = 999

// Vector is the feature snapshot computed for a patient at decision time.
// Every field has a defined default so downstream components never have to
// handle missing data; defaults lean healthy/neutral to avoid false alarms.
type Vector struct {
	HealthScore              float64 `json:"health_score"`       // 0-100
	HealthScoreTrend         Trend   `json:"health_score_trend"` // improving|stable|declining|unknown
	AvgSleep7d               float64 `json:"avg_sleep_7d"`       // hours
	AvgMood7d                float64 `json:"avg_mood_7d"`        // 1-5
	ActivityFrequency        float64 `json:"activity_frequency"` // logs per day
	LoggingConsistency       float64 `json:"logging_consistency"` // 0-1
	DaysSinceLastInteraction float64 `json:"days_since_last_interaction"`
	DaysSinceLastLog         float64 `json:"days_since_last_log"`
	PreviousNudgeSuccessRate float64 `json:"previous_nudge_success_rate"` // 0-1
	TotalNudgesReceived      int     `json:"total_nudges_received"`
	TotalNudgesActedOn       int     `json:"total_nudges_acted_on"`
	HourOfDay                int     `json:"hour_of_day"` // 0-23
	DayOfWeek                int     `json:"day_of_week"` // 0=Sunday
	IsWeekend                bool    `json:"is_weekend"`
	HasActiveSymptoms        bool    `json:"has_active_symptoms"`
	DaysUntilNextAppointment int     `json:"days_until_next_appointment"`
}

// Defaults returns a vector describing a healthy, neutral patient at the
// given instant. Sources start from this and overwrite what they can read.
func Defaults(now time.Time) Vector {
	weekday := int(now.Weekday())
	return Vector{
		HealthScore:              70,
		HealthScoreTrend:         TrendUnknown,
		AvgSleep7d:               7.0,
		AvgMood7d:                3.0,
		ActivityFrequency:        1.0,
		LoggingConsistency:       0.5,
		DaysSinceLastInteraction: 0,
		DaysSinceLastLog:         0,
		PreviousNudgeSuccessRate: 0.5,
		TotalNudgesReceived:      0,
		TotalNudgesActedOn:       0,
		HourOfDay:                now.Hour(),
		DayOfWeek:                weekday,
		IsWeekend:                weekday == 0 || weekday == 6,
		HasActiveSymptoms:        false,
		DaysUntilNextAppointment: NoUpcomingAppointment,
	}
}
