package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/nudge-engine/internal/features"
	"github.com/wolfman30/nudge-engine/internal/nudge"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

// Artifact is the trained-weights file format: the heuristic's functional
// form with learned parameters and a version string.
type Artifact struct {
	Version  string                 `json:"version"`
	Weights  Weights                `json:"weights"`
	TypeBias map[nudge.Type]float64 `json:"type_bias"`
}

// TrainedStrategy scores with weights learned offline from the nudge event
// ledger. Structurally identical to the heuristic, so it slots into the
// same chain position.
type TrainedStrategy struct {
	artifact Artifact
}

// NewTrainedStrategy wraps an already-parsed artifact.
func NewTrainedStrategy(artifact Artifact) (*TrainedStrategy, error) {
	if strings.TrimSpace(artifact.Version) == "" {
		return nil, errors.New("scoring: trained artifact missing version")
	}
	if len(artifact.TypeBias) == 0 {
		return nil, errors.New("scoring: trained artifact missing type bias table")
	}
	return &TrainedStrategy{artifact: artifact}, nil
}

func (s *TrainedStrategy) Name() string { return "trained" }

func (s *TrainedStrategy) Score(_ context.Context, v features.Vector, types []nudge.Type) (*Scores, error) {
	base := linearScore(v, s.artifact.Weights)
	probs := make(map[nudge.Type]float64, len(types))
	for _, t := range types {
		probs[t] = sigmoid(base + s.artifact.TypeBias[t])
	}
	return &Scores{Probabilities: probs, ModelVersion: s.artifact.Version}, nil
}

// s3GetObjectAPI is the slice of the S3 client the loader needs.
type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LoadTrainedStrategy reads a trained-weights artifact from a local path or
// an s3://bucket/key URI. An empty URI or a missing artifact is not an
// error: the caller stays on the heuristic, and a warning is logged so
// operators can tell which mode is running.
func LoadTrainedStrategy(ctx context.Context, uri string, s3api s3GetObjectAPI, logger *logging.Logger) *TrainedStrategy {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(uri) == "" {
		return nil
	}

	data, err := readArtifact(ctx, uri, s3api)
	if err != nil {
		logger.Warn("scoring: trained artifact unavailable, staying on heuristic",
			"uri", uri, "error", err)
		return nil
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		logger.Warn("scoring: trained artifact malformed, staying on heuristic",
			"uri", uri, "error", err)
		return nil
	}

	strategy, err := NewTrainedStrategy(artifact)
	if err != nil {
		logger.Warn("scoring: trained artifact rejected, staying on heuristic",
			"uri", uri, "error", err)
		return nil
	}

	logger.Info("scoring: trained model loaded", "uri", uri, "version", artifact.Version)
	return strategy
}

func readArtifact(ctx context.Context, uri string, s3api s3GetObjectAPI) ([]byte, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return os.ReadFile(uri)
	}

	if s3api == nil {
		return nil, errors.New("scoring: s3 client not configured")
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("scoring: invalid s3 URI %q", uri)
	}

	out, err := s3api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}
