package camera_test

import (
	"bytes"
	"testing"

	"reelvault/internal/camera"
	"reelvault/internal/media"
)

func fx3Meta(frameRate float64) media.Metadata {
	return media.Metadata{Make: "Sony", Model: "ILME-FX3", Width: 3840, Height: 2160, FrameRate: frameRate}
}

func TestTrainingSessionIsAnExplicitHandle(t *testing.T) {
	first, err := camera.NewTrainingSession("FX3")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	second, err := camera.NewTrainingSession("FX3")
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if first.ID() == second.ID() {
		t.Fatal("sessions must have distinct ids")
	}

	if err := first.AddSample("/cards/a/C0001.MP4", fx3Meta(23.976)); err != nil {
		t.Fatalf("add sample: %v", err)
	}
	if len(second.Samples()) != 0 {
		t.Fatal("sessions must not share sample state")
	}
}

func TestAnalyzeRequiresMinimumSamples(t *testing.T) {
	session, err := camera.NewTrainingSession("FX3")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.AddSample("/a.mp4", fx3Meta(23.976)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := session.Analyze(); err == nil {
		t.Fatal("expected error with too few samples")
	}
}

func TestAnalyzeClustersAndRanksCandidates(t *testing.T) {
	session, err := camera.NewTrainingSession("FX3")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	for _, path := range []string{"/a.mp4", "/b.mp4", "/c.mp4"} {
		if err := session.AddSample(path, fx3Meta(23.976)); err != nil {
			t.Fatalf("add %s: %v", path, err)
		}
	}
	// One stray clip shot at a different frame rate.
	if err := session.AddSample("/d.mp4", fx3Meta(59.94)); err != nil {
		t.Fatalf("add stray: %v", err)
	}

	candidates, err := session.Analyze()
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(candidates))
	}
	if candidates[0].FrameRate != 23.976 {
		t.Fatalf("dominant cluster should rank first, got %f fps", candidates[0].FrameRate)
	}
	if candidates[0].Confidence != 0.75 {
		t.Fatalf("expected 3/4 confidence, got %f", candidates[0].Confidence)
	}
	if candidates[0].Name != "FX3" {
		t.Fatalf("candidate carries the session camera name, got %s", candidates[0].Name)
	}
}

func TestRemoveAndReplaceSamples(t *testing.T) {
	session, err := camera.NewTrainingSession("FX3")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.AddSample("/a.mp4", fx3Meta(23.976)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := session.AddSample("/a.mp4", fx3Meta(59.94)); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	samples := session.Samples()
	if len(samples) != 1 || samples[0].Metadata.FrameRate != 59.94 {
		t.Fatal("re-adding a path must replace the sample")
	}

	if err := session.RemoveSample("/a.mp4"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := session.RemoveSample("/a.mp4"); err == nil {
		t.Fatal("removing an absent sample should error")
	}
}

func TestSignatureExportImportRoundTrip(t *testing.T) {
	session, err := camera.NewTrainingSession("FX3")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	for _, path := range []string{"/a.mp4", "/b.mp4", "/c.mp4"} {
		if err := session.AddSample(path, fx3Meta(23.976)); err != nil {
			t.Fatalf("add %s: %v", path, err)
		}
	}
	candidates, err := session.Analyze()
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var buf bytes.Buffer
	if err := camera.ExportSignatures(&buf, candidates); err != nil {
		t.Fatalf("export: %v", err)
	}
	imported, err := camera.ImportSignatures(&buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != len(candidates) {
		t.Fatalf("expected %d signatures back, got %d", len(candidates), len(imported))
	}
	if imported[0].Model != "ILME-FX3" || imported[0].Confidence != 1.0 {
		t.Fatalf("imported signature differs: %+v", imported[0])
	}

	if _, err := camera.ImportSignatures(bytes.NewBufferString(`{"version": 99}`)); err == nil {
		t.Fatal("expected version check to reject unknown documents")
	}
}
