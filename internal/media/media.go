package media

import (
	"path/filepath"
	"strings"
	"time"
)

// FileKind classifies a file by its role in the library.
type FileKind string

const (
	KindVideo   FileKind = "video"
	KindSidecar FileKind = "sidecar"
	KindAudio   FileKind = "audio"
	KindOther   FileKind = "other"
)

// Medium classifies the source technology of a piece of footage.
type Medium string

const (
	MediumLegacyTape    Medium = "legacy_tape"
	MediumFilmScan      Medium = "film_scan"
	MediumModernDigital Medium = "modern_digital"
)

// FootageType classifies when footage was shot relative to a project's key dates.
type FootageType string

const (
	FootagePreparation FootageType = "preparation"
	FootageMainEvent   FootageType = "main_event"
	FootageRehearsal   FootageType = "rehearsal"
	FootageOther       FootageType = "other"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mxf": {}, ".avi": {}, ".mts": {}, ".m2ts": {},
	".mkv": {}, ".m4v": {}, ".dv": {}, ".braw": {}, ".r3d": {}, ".insv": {},
	".lrv": {}, ".360": {},
}

var sidecarExtensions = map[string]struct{}{
	".xml": {}, ".xmp": {}, ".thm": {}, ".srt": {}, ".cpi": {}, ".bim": {},
	".mpl": {}, ".cif": {}, ".sif": {},
}

var audioExtensions = map[string]struct{}{
	".wav": {}, ".mp3": {}, ".aac": {}, ".flac": {}, ".m4a": {}, ".aif": {},
	".aiff": {},
}

// KindForPath classifies a path by extension. Unsupported extensions map to
// KindOther, which the scanner skips silently.
func KindForPath(path string) FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case isVideo(ext):
		return KindVideo
	case isSidecar(ext):
		return KindSidecar
	case isAudio(ext):
		return KindAudio
	default:
		return KindOther
	}
}

// Supported reports whether the path carries an extension the library imports.
func Supported(path string) bool {
	return KindForPath(path) != KindOther
}

func isVideo(ext string) bool {
	_, ok := videoExtensions[ext]
	return ok
}

func isSidecar(ext string) bool {
	_, ok := sidecarExtensions[ext]
	return ok
}

func isAudio(ext string) bool {
	_, ok := audioExtensions[ext]
	return ok
}

// ParseMedium converts a stored string into a known Medium.
func ParseMedium(value string) (Medium, bool) {
	switch Medium(strings.ToLower(strings.TrimSpace(value))) {
	case MediumLegacyTape:
		return MediumLegacyTape, true
	case MediumFilmScan:
		return MediumFilmScan, true
	case MediumModernDigital:
		return MediumModernDigital, true
	default:
		return "", false
	}
}

// ParseFootageType converts a stored string into a known FootageType.
func ParseFootageType(value string) (FootageType, bool) {
	switch FootageType(strings.ToLower(strings.TrimSpace(value))) {
	case FootagePreparation:
		return FootagePreparation, true
	case FootageMainEvent:
		return FootageMainEvent, true
	case FootageRehearsal:
		return FootageRehearsal, true
	case FootageOther:
		return FootageOther, true
	default:
		return "", false
	}
}

// ClassifyFootage derives a footage type from a recording timestamp and the
// project's event date. Files shot before the event day classify as
// preparation, on the day as main event, anything else as other. A zero
// recorded time or event date yields FootageOther.
func ClassifyFootage(recorded, eventDate time.Time) FootageType {
	if recorded.IsZero() || eventDate.IsZero() {
		return FootageOther
	}
	recDay := recorded.Truncate(24 * time.Hour)
	eventDay := eventDate.Truncate(24 * time.Hour)
	switch {
	case recDay.Equal(eventDay):
		return FootageMainEvent
	case recDay.Before(eventDay):
		return FootagePreparation
	default:
		return FootageOther
	}
}
