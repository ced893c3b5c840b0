// Package camera resolves which capture device produced a piece of footage.
// Identification runs in two tiers: deterministic user-authored patterns
// first, learned metadata signatures as a fallback.
package camera

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"reelvault/internal/media"
	"reelvault/internal/store"
)

// Method names how a match was produced.
type Method string

const (
	MethodPattern   Method = "pattern"
	MethodSignature Method = "signature"
)

// Match is a resolved camera identification. Pattern matches carry the
// camera id directly; signature matches are suggestions and carry a camera
// id only when a registered camera shares the signature's name. Medium is
// the resolved camera's medium, falling back to the caller's hint.
type Match struct {
	CameraID    *int64
	Name        string
	Method      Method
	Confidence  float64
	PatternID   int64
	SignatureID int64
	Medium      media.Medium
}

// Matcher evaluates identification rules against footage. It is a snapshot
// of the rule set at construction time; rebuild after editing patterns or
// signatures.
type Matcher struct {
	patterns      []*store.CameraPattern
	cameras       map[int64]*store.Camera
	camerasByName map[string]*store.Camera
	signatures    []*store.CameraSignature
	minConfidence float64
}

// NewMatcher loads the current rule set from the store.
func NewMatcher(ctx context.Context, st *store.Store, minConfidence float64) (*Matcher, error) {
	patterns, err := st.ListCameraPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	cameras, err := st.ListCameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cameras: %w", err)
	}
	signatures, err := st.ListSignatures(ctx)
	if err != nil {
		return nil, fmt.Errorf("load signatures: %w", err)
	}

	matcher := &Matcher{
		patterns:      patterns,
		cameras:       make(map[int64]*store.Camera, len(cameras)),
		camerasByName: make(map[string]*store.Camera, len(cameras)),
		signatures:    signatures,
		minConfidence: minConfidence,
	}
	for _, cam := range cameras {
		matcher.cameras[cam.ID] = cam
		matcher.camerasByName[strings.ToLower(cam.Name)] = cam
	}
	return matcher, nil
}

// Match resolves the most likely source camera for a path. The pattern tier
// wins outright when any pattern hits, regardless of signature scores. A
// non-empty medium hint excludes cameras of a conflicting medium. Returns
// nil when nothing identifies the file.
func (m *Matcher) Match(path string, medium media.Medium, meta *media.Metadata) *Match {
	if match := m.matchPatterns(path, medium); match != nil {
		return match
	}
	return m.matchSignatures(medium, meta)
}

// matchPatterns walks patterns in priority order; the first hit is
// authoritative.
func (m *Matcher) matchPatterns(path string, medium media.Medium) *Match {
	filename := filepath.Base(path)
	folder := filepath.Dir(path)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	for _, pattern := range m.patterns {
		if !patternHits(pattern, filename, folder, ext) {
			continue
		}
		cam, ok := m.cameras[pattern.CameraID]
		if !ok {
			continue
		}
		if mediumConflict(cam.Medium, medium) {
			continue
		}
		id := cam.ID
		return &Match{
			CameraID:   &id,
			Name:       cam.Name,
			Method:     MethodPattern,
			Confidence: 1.0,
			PatternID:  pattern.ID,
			Medium:     resolveMedium(cam.Medium, medium),
		}
	}
	return nil
}

func mediumConflict(cameraMedium, hint media.Medium) bool {
	return cameraMedium != "" && hint != "" && cameraMedium != hint
}

func resolveMedium(cameraMedium, hint media.Medium) media.Medium {
	if cameraMedium != "" {
		return cameraMedium
	}
	return hint
}

func patternHits(pattern *store.CameraPattern, filename, folder, ext string) bool {
	text := pattern.Pattern
	switch pattern.Kind {
	case store.PatternFilename:
		// Filename patterns wrapped in slashes are regular expressions;
		// anything else is a case-insensitive substring.
		if len(text) > 2 && strings.HasPrefix(text, "/") && strings.HasSuffix(text, "/") {
			re, err := regexp.Compile("(?i)" + text[1:len(text)-1])
			if err != nil {
				return false
			}
			return re.MatchString(filename)
		}
		return strings.Contains(strings.ToLower(filename), strings.ToLower(text))
	case store.PatternFolder:
		return strings.Contains(strings.ToLower(folder), strings.ToLower(text))
	case store.PatternExtension:
		want := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(text)), ".")
		return want != "" && want == ext
	}
	return false
}

// Signature scoring weights. Make and model dominate; resolution and frame
// rate disambiguate devices from the same vendor.
const (
	weightMake       = 0.3
	weightModel      = 0.3
	weightResolution = 0.25
	weightFrameRate  = 0.15

	frameRateTolerance = 0.15
)

// matchSignatures scores every learned signature against the observed
// metadata and returns the best suggestion above the confidence floor.
func (m *Matcher) matchSignatures(medium media.Medium, meta *media.Metadata) *Match {
	if meta == nil {
		return nil
	}

	var (
		best      *store.CameraSignature
		bestScore float64
	)
	for _, sig := range m.signatures {
		score := scoreSignature(sig, meta)
		if score > bestScore {
			best, bestScore = sig, score
		}
	}
	if best == nil || bestScore < m.minConfidence {
		return nil
	}

	match := &Match{
		Name:        best.Name,
		Method:      MethodSignature,
		Confidence:  bestScore,
		SignatureID: best.ID,
		Medium:      medium,
	}
	if cam, ok := m.camerasByName[strings.ToLower(best.Name)]; ok {
		if mediumConflict(cam.Medium, medium) {
			return match
		}
		id := cam.ID
		match.CameraID = &id
		match.Medium = resolveMedium(cam.Medium, medium)
	}
	return match
}

func scoreSignature(sig *store.CameraSignature, meta *media.Metadata) float64 {
	score := 0.0
	if sig.Make != "" && strings.EqualFold(sig.Make, meta.Make) {
		score += weightMake
	}
	if sig.Model != "" && strings.EqualFold(sig.Model, meta.Model) {
		score += weightModel
	}
	if sig.Width > 0 && sig.Width == meta.Width && sig.Height == meta.Height {
		score += weightResolution
	}
	if sig.FrameRate > 0 && math.Abs(sig.FrameRate-meta.FrameRate) <= frameRateTolerance {
		score += weightFrameRate
	}
	return score
}
