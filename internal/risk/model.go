package risk

import (
	"github.com/wolfman30/nudge-engine/internal/nudge"
)

// Severity of a detected risk.
type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityCritical Severity = "critical"
)

// Level is the overall risk level of an assessment.
type Level string

const (
	LevelLow      Level = "low"
	LevelPositive Level = "positive"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Risk areas. Each area maps 1:1 to the nudge type its rule produces, which
// is how the orchestrator picks the risks relevant to a selected nudge.
const (
	AreaSleep       = "sleep"
	AreaMood        = "mood"
	AreaHealthScore = "health_score"
	AreaEngagement  = "engagement"
	AreaConsistency = "consistency"
	AreaAppointment = "appointment"
	AreaSymptoms    = "symptoms"
	AreaProgress    = "progress"
	AreaStreak      = "streak"
	AreaGeneral     = "general"
)

// AreaForType returns the risk area whose rule produces the given nudge type.
func AreaForType(t nudge.Type) string {
	switch t {
	case nudge.TypeSleepDeficit:
		return AreaSleep
	case nudge.TypeMoodSupport:
		return AreaMood
	case nudge.TypeDecliningScore:
		return AreaHealthScore
	case nudge.TypeMissingLog:
		return AreaEngagement
	case nudge.TypeConsistencyTip:
		return AreaConsistency
	case nudge.TypeAppointmentReminder:
		return AreaAppointment
	case nudge.TypeSymptomFollowup:
		return AreaSymptoms
	case nudge.TypeImprovingScore:
		return AreaProgress
	case nudge.TypeStreakCelebration:
		return AreaStreak
	default:
		return AreaGeneral
	}
}

// Risk is a single finding produced by one rule during one assessment.
// Risks are ephemeral: they exist only within a pipeline run.
type Risk struct {
	Area     string   `json:"area"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
}

// CandidateNudge is a nudge option proposed by the assessor.
type CandidateNudge struct {
	Type           nudge.Type     `json:"type"`
	Priority       nudge.Priority `json:"priority"`
	RelevanceScore float64        `json:"relevance_score"` // 0-1
}

// Assessment is the full output of one assessor run.
type Assessment struct {
	OverallRiskLevel Level            `json:"overall_risk_level"`
	Risks            []Risk           `json:"risks"`
	CandidateNudges  []CandidateNudge `json:"candidate_nudges"`
}

// RisksFor returns the risks whose area matches the given nudge type.
func (a *Assessment) RisksFor(t nudge.Type) []Risk {
	area := AreaForType(t)
	var out []Risk
	for _, r := range a.Risks {
		if r.Area == area {
			out = append(out, r)
		}
	}
	return out
}
