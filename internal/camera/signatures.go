package camera

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"reelvault/internal/store"
)

// signatureDocumentVersion identifies the portable export format.
const signatureDocumentVersion = 1

type signatureDocument struct {
	Version    int                 `json:"version"`
	ExportedAt time.Time           `json:"exported_at"`
	Signatures []exportedSignature `json:"signatures"`
}

type exportedSignature struct {
	Name       string          `json:"name"`
	Make       string          `json:"make,omitempty"`
	Model      string          `json:"model,omitempty"`
	Width      int             `json:"width,omitempty"`
	Height     int             `json:"height,omitempty"`
	FrameRate  float64         `json:"frame_rate,omitempty"`
	Confidence float64         `json:"confidence"`
	Markers    json.RawMessage `json:"markers,omitempty"`
}

// ExportSignatures writes a portable JSON document so signature databases
// can move between studio machines.
func ExportSignatures(w io.Writer, signatures []*store.CameraSignature) error {
	doc := signatureDocument{
		Version:    signatureDocumentVersion,
		ExportedAt: time.Now().UTC(),
		Signatures: make([]exportedSignature, 0, len(signatures)),
	}
	for _, sig := range signatures {
		exported := exportedSignature{
			Name:       sig.Name,
			Make:       sig.Make,
			Model:      sig.Model,
			Width:      sig.Width,
			Height:     sig.Height,
			FrameRate:  sig.FrameRate,
			Confidence: sig.Confidence,
		}
		if sig.MarkersJSON != "" {
			exported.Markers = json.RawMessage(sig.MarkersJSON)
		}
		doc.Signatures = append(doc.Signatures, exported)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export signatures: %w", err)
	}
	return nil
}

// ImportSignatures parses a previously exported document.
func ImportSignatures(r io.Reader) ([]*store.CameraSignature, error) {
	var doc signatureDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("import signatures: parse: %w", err)
	}
	if doc.Version != signatureDocumentVersion {
		return nil, fmt.Errorf("import signatures: unsupported version %d", doc.Version)
	}

	signatures := make([]*store.CameraSignature, 0, len(doc.Signatures))
	for i, exported := range doc.Signatures {
		if exported.Name == "" {
			return nil, fmt.Errorf("import signatures: entry %d missing name", i)
		}
		signatures = append(signatures, &store.CameraSignature{
			Name:        exported.Name,
			Make:        exported.Make,
			Model:       exported.Model,
			Width:       exported.Width,
			Height:      exported.Height,
			FrameRate:   exported.FrameRate,
			Confidence:  exported.Confidence,
			MarkersJSON: string(exported.Markers),
		})
	}
	return signatures, nil
}
