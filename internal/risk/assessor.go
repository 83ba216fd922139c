package risk

import (
	"fmt"
	"sort"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
)

// Thresholds are the tunable rule constants. Zero-value fields are not
// meaningful; construct with DefaultThresholds and override as needed.
type Thresholds struct {
	SleepDeficitHours     float64
	SleepCriticalHours    float64
	MoodLow               float64
	MoodCritical          float64
	HealthScoreLow        float64
	HealthScoreCritical   float64
	InactiveDays          float64
	InactiveCriticalDays  float64
	ConsistencyLow        float64
	AppointmentSoonDays   int
	AppointmentUrgentDays int
	StreakConsistency     float64
	DisengagedDays        float64
}

// DefaultThresholds returns the production rule constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SleepDeficitHours:     6.0,
		SleepCriticalHours:    5.0,
		MoodLow:               2.5,
		MoodCritical:          2.0,
		HealthScoreLow:        60,
		HealthScoreCritical:   40,
		InactiveDays:          2,
		InactiveCriticalDays:  5,
		ConsistencyLow:        0.3,
		AppointmentSoonDays:   2,
		AppointmentUrgentDays: 1,
		StreakConsistency:     0.8,
		DisengagedDays:        3,
	}
}

// Assessor turns a feature vector into risks and candidate nudges. It is a
// pure rule engine: deterministic, side-effect free, and total over any
// vector with the contract's defaults filled in.
type Assessor struct {
	t Thresholds
}

// NewAssessor creates an assessor with the given thresholds.
func NewAssessor(t Thresholds) *Assessor {
	return &Assessor{t: t}
}

// Assess evaluates the ordered rule list against the vector. Rules are
// independent: each may contribute at most one risk and one candidate, and
// positive-signal rules fire regardless of what the negative rules found.
func (a *Assessor) Assess(v features.Vector) Assessment {
	var out Assessment

	a.sleepRule(v, &out)
	a.moodRule(v, &out)
	a.healthScoreRule(v, &out)
	a.inactivityRule(v, &out)
	a.consistencyRule(v, &out)
	a.appointmentRule(v, &out)
	a.symptomRule(v, &out)
	a.improvingRule(v, &out)
	a.streakRule(v, &out)
	a.fallbackRule(v, &out)

	// Descending by relevance; SliceStable keeps rule order for ties, which
	// seeds the selector's exploration set.
	sort.SliceStable(out.CandidateNudges, func(i, j int) bool {
		return out.CandidateNudges[i].RelevanceScore > out.CandidateNudges[j].RelevanceScore
	})

	out.OverallRiskLevel = overallLevel(out.Risks)
	return out
}

func (a *Assessor) sleepRule(v features.Vector, out *Assessment) {
	if v.AvgSleep7d >= a.t.SleepDeficitHours {
		return
	}
	severity := SeverityMedium
	priority := nudge.PriorityMedium
	relevance := 0.7
	if v.AvgSleep7d < a.t.SleepCriticalHours {
		severity = SeverityCritical
		priority = nudge.PriorityHigh
		relevance = 0.9
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaSleep,
		Severity: severity,
		Reason:   fmt.Sprintf("averaging %.1fh sleep over the past week", v.AvgSleep7d),
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeSleepDeficit, Priority: priority, RelevanceScore: relevance,
	})
}

func (a *Assessor) moodRule(v features.Vector, out *Assessment) {
	if v.AvgMood7d >= a.t.MoodLow {
		return
	}
	severity := SeverityMedium
	priority := nudge.PriorityMedium
	relevance := 0.65
	if v.AvgMood7d < a.t.MoodCritical {
		severity = SeverityCritical
		priority = nudge.PriorityHigh
		relevance = 0.85
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaMood,
		Severity: severity,
		Reason:   fmt.Sprintf("average mood %.1f/5 over the past week", v.AvgMood7d),
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeMoodSupport, Priority: priority, RelevanceScore: relevance,
	})
}

func (a *Assessor) healthScoreRule(v features.Vector, out *Assessment) {
	if v.HealthScore >= a.t.HealthScoreLow {
		return
	}
	severity := SeverityMedium
	priority := nudge.PriorityMedium
	relevance := 0.6
	if v.HealthScore < a.t.HealthScoreCritical {
		severity = SeverityCritical
		priority = nudge.PriorityHigh
		relevance = 0.95
	}
	reason := fmt.Sprintf("health score at %.0f", v.HealthScore)
	if v.HealthScoreTrend == features.TrendDeclining {
		reason += " and declining"
	}
	out.Risks = append(out.Risks, Risk{Area: AreaHealthScore, Severity: severity, Reason: reason})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeDecliningScore, Priority: priority, RelevanceScore: relevance,
	})
}

func (a *Assessor) inactivityRule(v features.Vector, out *Assessment) {
	if v.DaysSinceLastLog < a.t.InactiveDays {
		return
	}
	severity := SeverityMedium
	priority := nudge.PriorityMedium
	relevance := 0.55
	if v.DaysSinceLastLog >= a.t.InactiveCriticalDays {
		severity = SeverityCritical
		priority = nudge.PriorityHigh
		relevance = 0.8
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaEngagement,
		Severity: severity,
		Reason:   fmt.Sprintf("no health log for %.0f days", v.DaysSinceLastLog),
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeMissingLog, Priority: priority, RelevanceScore: relevance,
	})
}

func (a *Assessor) consistencyRule(v features.Vector, out *Assessment) {
	if v.LoggingConsistency >= a.t.ConsistencyLow {
		return
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaConsistency,
		Severity: SeverityLow,
		Reason:   fmt.Sprintf("logging on %.0f%% of days", v.LoggingConsistency*100),
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeConsistencyTip, Priority: nudge.PriorityLow, RelevanceScore: 0.4,
	})
}

func (a *Assessor) appointmentRule(v features.Vector, out *Assessment) {
	if v.DaysUntilNextAppointment > a.t.AppointmentSoonDays {
		return
	}
	priority := nudge.PriorityMedium
	relevance := 0.75
	if v.DaysUntilNextAppointment <= a.t.AppointmentUrgentDays {
		priority = nudge.PriorityHigh
		relevance = 0.9
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaAppointment,
		Severity: SeverityInfo,
		Reason:   fmt.Sprintf("appointment in %d day(s)", v.DaysUntilNextAppointment),
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeAppointmentReminder, Priority: priority, RelevanceScore: relevance,
	})
}

func (a *Assessor) symptomRule(v features.Vector, out *Assessment) {
	if !v.HasActiveSymptoms {
		return
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaSymptoms,
		Severity: SeverityMedium,
		Reason:   "active symptoms reported in the last two days",
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeSymptomFollowup, Priority: nudge.PriorityMedium, RelevanceScore: 0.6,
	})
}

func (a *Assessor) improvingRule(v features.Vector, out *Assessment) {
	if v.HealthScoreTrend != features.TrendImproving || v.HealthScore < a.t.HealthScoreLow {
		return
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaProgress,
		Severity: SeverityPositive,
		Reason:   fmt.Sprintf("health score improving, now %.0f", v.HealthScore),
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeImprovingScore, Priority: nudge.PriorityLow, RelevanceScore: 0.5,
	})
}

func (a *Assessor) streakRule(v features.Vector, out *Assessment) {
	if v.LoggingConsistency < a.t.StreakConsistency || v.DaysSinceLastLog > 1 {
		return
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaStreak,
		Severity: SeverityPositive,
		Reason:   fmt.Sprintf("logging on %.0f%% of days and active today", v.LoggingConsistency*100),
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeStreakCelebration, Priority: nudge.PriorityLow, RelevanceScore: 0.45,
	})
}

// fallbackRule guarantees a disengaged patient always has at least one
// option, while a fully engaged healthy patient yields zero candidates.
func (a *Assessor) fallbackRule(v features.Vector, out *Assessment) {
	if len(out.CandidateNudges) > 0 || v.DaysSinceLastInteraction < a.t.DisengagedDays {
		return
	}
	out.Risks = append(out.Risks, Risk{
		Area:     AreaGeneral,
		Severity: SeverityInfo,
		Reason:   fmt.Sprintf("no interaction for %.0f days", v.DaysSinceLastInteraction),
	})
	out.CandidateNudges = append(out.CandidateNudges, CandidateNudge{
		Type: nudge.TypeGeneralCheckin, Priority: nudge.PriorityLow, RelevanceScore: 0.3,
	})
}

func overallLevel(risks []Risk) Level {
	var mediums, positives int
	for _, r := range risks {
		switch r.Severity {
		case SeverityCritical:
			return LevelCritical
		case SeverityMedium:
			mediums++
		case SeverityPositive:
			positives++
		}
	}
	switch {
	case mediums >= 2:
		return LevelHigh
	case mediums == 1:
		return LevelMedium
	case positives > 0:
		return LevelPositive
	default:
		return LevelLow
	}
}
