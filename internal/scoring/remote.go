package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
)

// RemoteConfig describes how to reach the scoring service.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RemoteStrategy calls the external ML scoring service. Every failure mode
// (timeout, non-2xx, malformed body) maps to ErrUnavailable so the chain
// falls through to a local model; this strategy never aborts a pipeline run.
type RemoteStrategy struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRemoteStrategy validates the configuration and returns a ready client.
func NewRemoteStrategy(cfg RemoteConfig) (*RemoteStrategy, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("scoring: remote base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RemoteStrategy{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (s *RemoteStrategy) Name() string { return "remote" }

// remoteFeatures is the scoring service's wire contract: its own naming and
// units (sleep in minutes, mood and score normalized to 0-1).
type remoteFeatures struct {
	HealthScoreNorm   float64 `json:"health_score_norm"`
	ScoreTrend        string  `json:"score_trend"`
	SleepMinutesAvg7d float64 `json:"sleep_minutes_avg_7d"`
	MoodNorm7d        float64 `json:"mood_norm_7d"`
	ActivityPerDay    float64 `json:"activity_per_day"`
	ConsistencyRatio  float64 `json:"consistency_ratio"`
	DaysIdle          float64 `json:"days_idle"`
	DaysUnlogged      float64 `json:"days_unlogged"`
	NudgeSuccessRate  float64 `json:"nudge_success_rate"`
	NudgesReceived    int     `json:"nudges_received"`
	NudgesActedOn     int     `json:"nudges_acted_on"`
	HourOfDay         int     `json:"hour_of_day"`
	DayOfWeek         int     `json:"day_of_week"`
	Weekend           bool    `json:"weekend"`
	ActiveSymptoms    bool    `json:"active_symptoms"`
	DaysToAppointment int     `json:"days_to_appointment"`
}

type remoteScoreRequest struct {
	Features       remoteFeatures `json:"features"`
	CandidateTypes []string       `json:"candidate_types"`
}

type remoteScoreResponse struct {
	Success       bool               `json:"success"`
	ModelVersion  string             `json:"model_version"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Score posts the translated feature vector and candidate types to the
// scoring service and maps the per-type probabilities back.
func (s *RemoteStrategy) Score(ctx context.Context, v features.Vector, types []nudge.Type) (*Scores, error) {
	candidates := make([]string, len(types))
	for i, t := range types {
		candidates[i] = string(t)
	}

	payload, err := json.Marshal(remoteScoreRequest{
		Features:       translateFeatures(v),
		CandidateTypes: candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/score", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	var decoded remoteScoreResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrUnavailable, err)
	}
	if !decoded.Success || len(decoded.Probabilities) == 0 {
		return nil, fmt.Errorf("%w: scorer reported failure", ErrUnavailable)
	}

	probs := make(map[nudge.Type]float64, len(types))
	for _, t := range types {
		p, ok := decoded.Probabilities[string(t)]
		if !ok {
			return nil, fmt.Errorf("%w: missing probability for %s", ErrUnavailable, t)
		}
		probs[t] = clamp01(p)
	}
	version := decoded.ModelVersion
	if version == "" {
		version = "remote"
	}
	return &Scores{Probabilities: probs, ModelVersion: version}, nil
}

func translateFeatures(v features.Vector) remoteFeatures {
	return remoteFeatures{
		HealthScoreNorm:   v.HealthScore / 100,
		ScoreTrend:        string(v.HealthScoreTrend),
		SleepMinutesAvg7d: v.AvgSleep7d * 60,
		MoodNorm7d:        (v.AvgMood7d - 1) / 4,
		ActivityPerDay:    v.ActivityFrequency,
		ConsistencyRatio:  v.LoggingConsistency,
		DaysIdle:          v.DaysSinceLastInteraction,
		DaysUnlogged:      v.DaysSinceLastLog,
		NudgeSuccessRate:  v.PreviousNudgeSuccessRate,
		NudgesReceived:    v.TotalNudgesReceived,
		NudgesActedOn:     v.TotalNudgesActedOn,
		HourOfDay:         v.HourOfDay,
		DayOfWeek:         v.DayOfWeek,
		Weekend:           v.IsWeekend,
		ActiveSymptoms:    v.HasActiveSymptoms,
		DaysToAppointment: v.DaysUntilNextAppointment,
	}
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
