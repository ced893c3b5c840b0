package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"reelvault/internal/media"
	"reelvault/internal/store"
)

// MinTrainingSamples is the smallest sample set Analyze accepts. Fewer
// samples produce a signature that matches almost anything.
const MinTrainingSamples = 3

// Sample is one footage file contributed to a training session.
type Sample struct {
	Path     string
	Metadata media.Metadata
}

// TrainingSession accumulates sample files for one physical camera and
// derives candidate signatures from them. The session is an explicit handle
// held by the caller; two sessions never share state, and abandoning one is
// just dropping the reference.
type TrainingSession struct {
	id      string
	name    string
	started time.Time
	samples []Sample
}

// NewTrainingSession starts a session for the named camera.
func NewTrainingSession(cameraName string) (*TrainingSession, error) {
	if cameraName == "" {
		return nil, errors.New("training: camera name required")
	}
	return &TrainingSession{
		id:      uuid.NewString(),
		name:    cameraName,
		started: time.Now().UTC(),
	}, nil
}

// ID returns the session identifier.
func (s *TrainingSession) ID() string { return s.id }

// Name returns the camera name the session is training for.
func (s *TrainingSession) Name() string { return s.name }

// AddSample contributes a file's metadata. Adding the same path twice
// replaces the earlier sample.
func (s *TrainingSession) AddSample(path string, meta media.Metadata) error {
	if path == "" {
		return errors.New("training: sample path required")
	}
	for i, sample := range s.samples {
		if sample.Path == path {
			s.samples[i].Metadata = meta
			return nil
		}
	}
	s.samples = append(s.samples, Sample{Path: path, Metadata: meta})
	return nil
}

// RemoveSample drops a previously added file.
func (s *TrainingSession) RemoveSample(path string) error {
	for i, sample := range s.samples {
		if sample.Path == path {
			s.samples = append(s.samples[:i], s.samples[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("training: sample %q not in session", path)
}

// Samples returns a snapshot of the accumulated samples.
func (s *TrainingSession) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

type signatureMarkers struct {
	SessionID   string    `json:"session_id"`
	SampleCount int       `json:"sample_count"`
	TrainedAt   time.Time `json:"trained_at"`
}

// Analyze clusters the samples by make/model/resolution/frame-rate and
// returns one candidate signature per cluster, strongest first. Confidence
// is the fraction of samples agreeing with the cluster.
func (s *TrainingSession) Analyze() ([]*store.CameraSignature, error) {
	if len(s.samples) < MinTrainingSamples {
		return nil, fmt.Errorf("training: need at least %d samples, have %d", MinTrainingSamples, len(s.samples))
	}

	type clusterKey struct {
		mk, model     string
		width, height int
		frameRate     float64
	}
	clusters := map[clusterKey]int{}
	for _, sample := range s.samples {
		meta := sample.Metadata
		clusters[clusterKey{
			mk:        meta.Make,
			model:     meta.Model,
			width:     meta.Width,
			height:    meta.Height,
			frameRate: meta.FrameRate,
		}]++
	}

	markers, err := json.Marshal(signatureMarkers{
		SessionID:   s.id,
		SampleCount: len(s.samples),
		TrainedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("training: encode markers: %w", err)
	}

	candidates := make([]*store.CameraSignature, 0, len(clusters))
	for key, count := range clusters {
		candidates = append(candidates, &store.CameraSignature{
			Name:        s.name,
			Make:        key.mk,
			Model:       key.model,
			Width:       key.width,
			Height:      key.height,
			FrameRate:   key.frameRate,
			Confidence:  float64(count) / float64(len(s.samples)),
			MarkersJSON: string(markers),
			CreatedAt:   time.Now().UTC(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Model < candidates[j].Model
	})
	return candidates, nil
}
