package media

import (
	"testing"
	"time"
)

func TestKindForPath(t *testing.T) {
	cases := []struct {
		path string
		kind FileKind
	}{
		{"/cards/A7III_0012.MP4", KindVideo},
		{"/cards/clip.mov", KindVideo},
		{"/cards/tape_capture.dv", KindVideo},
		{"/cards/CLIP0001M01.XML", KindSidecar},
		{"/cards/interview.WAV", KindAudio},
		{"/cards/notes.txt", KindOther},
		{"/cards/noext", KindOther},
	}
	for _, tc := range cases {
		if got := KindForPath(tc.path); got != tc.kind {
			t.Fatalf("%s: expected %s, got %s", tc.path, tc.kind, got)
		}
	}
}

func TestClassifyFootage(t *testing.T) {
	event := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		recorded time.Time
		expected FootageType
	}{
		{"day_of", time.Date(2025, 6, 14, 15, 30, 0, 0, time.UTC), FootageMainEvent},
		{"week_before", event.AddDate(0, 0, -7), FootagePreparation},
		{"after", event.AddDate(0, 0, 2), FootageOther},
		{"zero_recorded", time.Time{}, FootageOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyFootage(tc.recorded, event); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		value    string
		expected float64
	}{
		{"30000/1001", 29.97002997002997},
		{"25/1", 25},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"junk", 0},
	}
	for _, tc := range cases {
		got := parseFrameRate(tc.value)
		if diff := got - tc.expected; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("%q: expected %f, got %f", tc.value, tc.expected, got)
		}
	}
}

func TestMetadataResolution(t *testing.T) {
	meta := Metadata{Width: 3840, Height: 2160}
	if meta.Resolution() != "3840x2160" {
		t.Fatalf("unexpected resolution %q", meta.Resolution())
	}
	if (Metadata{}).Resolution() != "" {
		t.Fatal("expected empty resolution for zero dimensions")
	}
}
