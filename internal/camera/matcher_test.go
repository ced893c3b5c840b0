package camera_test

import (
	"context"
	"testing"

	"reelvault/internal/camera"
	"reelvault/internal/media"
	"reelvault/internal/store"
	"reelvault/internal/testsupport"
)

func seedCamera(t *testing.T, st *store.Store, name string) *store.Camera {
	t.Helper()
	cam, err := st.CreateCamera(context.Background(), &store.Camera{Name: name})
	if err != nil {
		t.Fatalf("create camera %s: %v", name, err)
	}
	return cam
}

func seedPattern(t *testing.T, st *store.Store, cameraID int64, kind store.PatternKind, pattern string, priority int) {
	t.Helper()
	_, err := st.AddCameraPattern(context.Background(), &store.CameraPattern{
		CameraID: cameraID,
		Kind:     kind,
		Pattern:  pattern,
		Priority: priority,
	})
	if err != nil {
		t.Fatalf("add pattern %q: %v", pattern, err)
	}
}

func newMatcher(t *testing.T, st *store.Store) *camera.Matcher {
	t.Helper()
	matcher, err := camera.NewMatcher(context.Background(), st, 0.5)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	return matcher
}

func TestPatternPrecedenceHighestPriorityWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	generic := seedCamera(t, st, "Generic Sony")
	a7 := seedCamera(t, st, "A7III Main")
	seedPattern(t, st, generic.ID, store.PatternExtension, "mp4", 1)
	seedPattern(t, st, a7.ID, store.PatternFilename, "A7III", 10)

	match := newMatcher(t, st).Match("/cards/sony/A7III_0012.MP4", "", nil)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.CameraID == nil || *match.CameraID != a7.ID {
		t.Fatalf("priority-10 pattern must win, got camera %v", match.CameraID)
	}
	if match.Method != camera.MethodPattern {
		t.Fatalf("expected pattern method, got %s", match.Method)
	}
}

func TestPatternBeatsSignatureRegardlessOfScore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a7 := seedCamera(t, st, "A7III Main")
	seedPattern(t, st, a7.ID, store.PatternFilename, "A7III", 10)
	if _, err := st.SaveSignature(ctx, &store.CameraSignature{
		Name: "Generic Sony", Make: "Sony", Model: "ILCE-7M3",
		Width: 3840, Height: 2160, FrameRate: 23.976, Confidence: 1,
	}); err != nil {
		t.Fatalf("save signature: %v", err)
	}

	meta := &media.Metadata{Make: "Sony", Model: "ILCE-7M3", Width: 3840, Height: 2160, FrameRate: 23.976}
	match := newMatcher(t, st).Match("A7III_0012.MP4", "", meta)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Method != camera.MethodPattern || match.Name != "A7III Main" {
		t.Fatalf("pattern tier must win outright, got %s via %s", match.Name, match.Method)
	}
}

func TestPatternKinds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	tape := seedCamera(t, st, "VHS Deck")
	drone := seedCamera(t, st, "Drone")
	regex := seedCamera(t, st, "GoPro")
	seedPattern(t, st, tape.ID, store.PatternFolder, "tape_captures", 5)
	seedPattern(t, st, drone.ID, store.PatternExtension, ".insv", 5)
	seedPattern(t, st, regex.ID, store.PatternFilename, "/^GOPR\\d{4}/", 5)

	matcher := newMatcher(t, st)

	cases := []struct {
		name string
		path string
		want string
	}{
		{"folder substring", "/library/tape_captures/wedding1.avi", "VHS Deck"},
		{"extension equality", "/cards/x/VID_0001.INSV", "Drone"},
		{"filename regex", "/cards/gopro/GOPR1234.MP4", "GoPro"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			match := matcher.Match(tc.path, "", nil)
			if match == nil {
				t.Fatalf("expected %s to match", tc.path)
			}
			if match.Name != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, match.Name)
			}
		})
	}

	if match := matcher.Match("/cards/unknown/CLIP.MOV", "", nil); match != nil {
		t.Fatalf("expected no match, got %s", match.Name)
	}
}

func TestSignatureFallbackRespectsThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cam := seedCamera(t, st, "FX3 B-Cam")
	if _, err := st.SaveSignature(ctx, &store.CameraSignature{
		Name: "FX3 B-Cam", Make: "Sony", Model: "ILME-FX3",
		Width: 3840, Height: 2160, FrameRate: 59.94, Confidence: 1,
	}); err != nil {
		t.Fatalf("save signature: %v", err)
	}
	matcher := newMatcher(t, st)

	full := &media.Metadata{Make: "Sony", Model: "ILME-FX3", Width: 3840, Height: 2160, FrameRate: 59.94}
	match := matcher.Match("C0001.MP4", "", full)
	if match == nil {
		t.Fatal("expected signature match")
	}
	if match.Method != camera.MethodSignature {
		t.Fatalf("expected signature method, got %s", match.Method)
	}
	if match.CameraID == nil || *match.CameraID != cam.ID {
		t.Fatal("signature sharing a camera name should resolve the camera")
	}
	if match.Confidence < 0.99 {
		t.Fatalf("full metadata agreement should score ~1.0, got %f", match.Confidence)
	}

	weak := &media.Metadata{Make: "Sony", Model: "DSC-RX100"}
	if match := matcher.Match("C0002.MP4", "", weak); match != nil {
		t.Fatalf("make-only agreement is below threshold, got %f", match.Confidence)
	}

	if match := matcher.Match("C0003.MP4", "", nil); match != nil {
		t.Fatal("no metadata means no signature tier")
	}
}

func TestMatchCarriesCameraMedium(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	deck, err := st.CreateCamera(context.Background(), &store.Camera{
		Name: "VHS Deck", Medium: media.MediumLegacyTape,
	})
	if err != nil {
		t.Fatalf("create camera: %v", err)
	}
	seedPattern(t, st, deck.ID, store.PatternExtension, "avi", 5)

	match := newMatcher(t, st).Match("/captures/wedding1.AVI", "", nil)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Medium != media.MediumLegacyTape {
		t.Fatalf("match must carry the camera's medium, got %q", match.Medium)
	}
}

func TestMediumHintFiltersConflictingCameras(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	digital, err := st.CreateCamera(ctx, &store.Camera{
		Name: "FX3 A-Cam", Medium: media.MediumModernDigital,
	})
	if err != nil {
		t.Fatalf("create camera: %v", err)
	}
	seedPattern(t, st, digital.ID, store.PatternExtension, "mp4", 5)

	matcher := newMatcher(t, st)
	if match := matcher.Match("CLIP.MP4", media.MediumLegacyTape, nil); match != nil {
		t.Fatalf("legacy-tape hint must not resolve a modern-digital camera, got %s", match.Name)
	}
	match := matcher.Match("CLIP.MP4", media.MediumModernDigital, nil)
	if match == nil || match.Name != "FX3 A-Cam" {
		t.Fatal("agreeing hint must still resolve the camera")
	}
}
