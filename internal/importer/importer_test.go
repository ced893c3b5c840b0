package importer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"reelvault/internal/camera"
	"reelvault/internal/config"
	"reelvault/internal/logging"
	"reelvault/internal/media"
	"reelvault/internal/store"
	"reelvault/internal/testsupport"
)

func newOrchestrator(t *testing.T, cfg *config.Config, st *store.Store) *Orchestrator {
	t.Helper()
	matcher, err := camera.NewMatcher(context.Background(), st, cfg.Matcher.MinConfidence)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	return New(cfg, st, matcher, logging.NewNop(), WithProber(media.NoopProber{}))
}

func writeCards(t *testing.T, dir string, count int) []string {
	t.Helper()
	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, "cards", "a", "CLIP_"+string(rune('A'+i))+".MP4")
		testsupport.WriteClip(t, path, path)
		paths = append(paths, path)
	}
	return paths
}

func TestImportThenReimportDeduplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	orch := newOrchestrator(t, cfg, st)
	ctx := context.Background()

	dir := t.TempDir()
	writeCards(t, dir, 3)

	_, first, err := orch.Start(ctx, Options{Paths: []string{dir}})
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.Total != 3 || first.Imported != 3 || first.Duplicates != 0 || first.Errors != 0 {
		t.Fatalf("unexpected first summary %+v", first)
	}

	_, second, err := orch.Start(ctx, Options{Paths: []string{dir}})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.Imported != 0 || second.Duplicates != 3 {
		t.Fatalf("re-import must deduplicate, got %+v", second)
	}

	files, err := st.ListFiles(ctx, 0)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected exactly 3 file rows, got %d", len(files))
	}
}

func TestImportRecordsPerFileErrorsWithoutAborting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	orch := newOrchestrator(t, cfg, st)
	ctx := context.Background()

	dir := t.TempDir()
	paths := writeCards(t, dir, 2)
	missing := filepath.Join(dir, "cards", "a", "GONE.MP4")
	paths = append(paths, missing)

	session, summary, err := orch.Start(ctx, Options{Paths: paths})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if session.Status != store.SessionCompleted {
		t.Fatalf("per-file errors must not fail the session, got %s", session.Status)
	}
	if summary.Imported != 2 || summary.Errors != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	var failed *FileOutcome
	for i := range summary.Files {
		if summary.Files[i].Error != "" {
			failed = &summary.Files[i]
		}
	}
	if failed == nil || failed.Path != missing {
		t.Fatal("expected the unreadable file recorded in the error list")
	}
}

func TestImportCopiesIntoManagedStorage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithManagedCopies())
	st := testsupport.MustOpenStore(t, cfg)
	orch := newOrchestrator(t, cfg, st)
	ctx := context.Background()

	dir := t.TempDir()
	clip := filepath.Join(dir, "C0001.MP4")
	testsupport.WriteClip(t, clip, "managed")

	_, summary, err := orch.Start(ctx, Options{Paths: []string{clip}})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Imported != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	file, err := st.ListFiles(ctx, 1)
	if err != nil || len(file) != 1 {
		t.Fatalf("list files: %v", err)
	}
	if file[0].ManagedPath == "" {
		t.Fatal("expected a managed path on the file row")
	}
	want := filepath.Join(cfg.Paths.ManagedDir, file[0].ContentHash[:2], file[0].ContentHash+".mp4")
	if file[0].ManagedPath != want {
		t.Fatalf("managed layout mismatch: %s", file[0].ManagedPath)
	}
}

func TestImportEnqueuesAnalysisJobsWithDependency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	orch := newOrchestrator(t, cfg, st)
	ctx := context.Background()

	dir := t.TempDir()
	clip := filepath.Join(dir, "C0001.MP4")
	testsupport.WriteClip(t, clip, "jobs")

	if _, _, err := orch.Start(ctx, Options{Paths: []string{clip}}); err != nil {
		t.Fatalf("import: %v", err)
	}

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected scene_detect and thumbnail jobs, got %d", len(jobs))
	}
	byType := map[string]*store.Job{}
	for _, job := range jobs {
		byType[job.JobType] = job
	}
	scene, thumb := byType["scene_detect"], byType["thumbnail"]
	if scene == nil || thumb == nil {
		t.Fatalf("missing expected job types: %v", byType)
	}
	if thumb.DependsOn == nil || *thumb.DependsOn != scene.ID {
		t.Fatal("thumbnail must depend on scene detection")
	}
}

func TestResumeAfterInterruptedCopyMatchesCleanRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	orch := newOrchestrator(t, cfg, st)
	ctx := context.Background()

	dir := t.TempDir()
	paths := writeCards(t, dir, 5)

	// Drive the first two steps, then process only two files before the
	// simulated crash: the session row stays at last_step = hashing with a
	// partial copy ledger, exactly what a killed process leaves behind.
	session, err := st.CreateSession(ctx, &store.ImportSession{
		SourcePathsJSON: `["` + dir + `"]`,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	log := logging.NewNop()
	if err := orch.scanStep(ctx, session, log); err != nil {
		t.Fatalf("scan step: %v", err)
	}
	if err := orch.hashStep(ctx, session, log); err != nil {
		t.Fatalf("hash step: %v", err)
	}
	hashBefore := session.HashJSON

	var hashes hashPayload
	if err := json.Unmarshal([]byte(session.HashJSON), &hashes); err != nil {
		t.Fatalf("decode hashes: %v", err)
	}
	ledger := copyPayload{Outcomes: map[string]FileOutcome{}}
	for _, path := range []string{paths[0], paths[1]} {
		ledger.Outcomes[path] = orch.processFile(ctx, session, path, hashes, nil, log)
		session.ProcessedFiles++
	}
	session.Status = store.SessionCopying
	if err := orch.persistLedger(ctx, session, &ledger); err != nil {
		t.Fatalf("persist ledger: %v", err)
	}

	resumed, summary, err := orch.Resume(ctx, session.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != store.SessionCompleted {
		t.Fatalf("expected completed, got %s", resumed.Status)
	}
	if resumed.ProcessedFiles != 5 {
		t.Fatalf("expected all 5 files processed, got %d", resumed.ProcessedFiles)
	}
	if resumed.HashJSON != hashBefore {
		t.Fatal("resume must reuse persisted hash results, not recompute them")
	}
	if summary.Imported != 5 || summary.Duplicates != 0 || summary.Errors != 0 {
		t.Fatalf("resumed run must match a clean run, got %+v", summary)
	}

	files, err := st.ListFiles(ctx, 0)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 5 {
		t.Fatalf("expected 5 unique file rows, got %d", len(files))
	}
}

func TestCancellationStopsBetweenFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeCards(t, dir, 4)

	matcher, err := camera.NewMatcher(context.Background(), st, cfg.Matcher.MinConfidence)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	orch := New(cfg, st, matcher, logging.NewNop(),
		WithProber(media.NoopProber{}),
		WithProgress(func(p Progress) {
			if p.Processed == 2 {
				cancel()
			}
		}))

	session, summary, err := orch.Start(ctx, Options{Paths: []string{dir}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Status != store.SessionCancelled {
		t.Fatalf("expected cancelled, got %s", session.Status)
	}
	if summary.Total != 4 {
		t.Fatalf("summary keeps the discovered total, got %d", summary.Total)
	}
	if session.ProcessedFiles >= 4 {
		t.Fatalf("cancellation should stop mid-batch, processed %d", session.ProcessedFiles)
	}
}

func TestResumeCompletesFailedSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	orch := newOrchestrator(t, cfg, st)
	ctx := context.Background()

	dir := t.TempDir()
	writeCards(t, dir, 3)

	// Scan and hash, then record the kind of failure a full disk leaves
	// behind: status failed, checkpoints intact, can_resume still set.
	session, err := st.CreateSession(ctx, &store.ImportSession{
		SourcePathsJSON: `["` + dir + `"]`,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	log := logging.NewNop()
	if err := orch.scanStep(ctx, session, log); err != nil {
		t.Fatalf("scan step: %v", err)
	}
	if err := orch.hashStep(ctx, session, log); err != nil {
		t.Fatalf("hash step: %v", err)
	}
	session.Status = store.SessionFailed
	session.ErrorMessage = "copy: no space left on device"
	if err := st.UpdateSession(ctx, session); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	resumed, summary, err := orch.Resume(ctx, session.ID)
	if err != nil {
		t.Fatalf("resume failed session: %v", err)
	}
	if resumed.Status != store.SessionCompleted {
		t.Fatalf("expected completed, got %s", resumed.Status)
	}
	if summary.Imported != 3 || summary.Errors != 0 {
		t.Fatalf("resumed run must import everything, got %+v", summary)
	}
	if resumed.ErrorMessage != "" {
		t.Fatalf("completion must clear the old failure, got %q", resumed.ErrorMessage)
	}
}

func TestPauseStopsBetweenFilesAndResumes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dir := t.TempDir()
	writeCards(t, dir, 4)

	matcher, err := camera.NewMatcher(ctx, st, cfg.Matcher.MinConfidence)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	var orch *Orchestrator
	orch = New(cfg, st, matcher, logging.NewNop(),
		WithProber(media.NoopProber{}),
		WithProgress(func(p Progress) {
			if p.Processed == 2 {
				orch.RequestPause()
			}
		}))

	session, _, err := orch.Start(ctx, Options{Paths: []string{dir}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Status != store.SessionPaused {
		t.Fatalf("expected paused, got %s", session.Status)
	}
	if session.ProcessedFiles != 2 {
		t.Fatalf("pause lands after the file in flight, processed %d", session.ProcessedFiles)
	}

	resumable, err := st.ResumableSessions(ctx)
	if err != nil {
		t.Fatalf("resumable sessions: %v", err)
	}
	if len(resumable) != 1 || resumable[0].ID != session.ID {
		t.Fatalf("paused session must be listed as resumable, got %d", len(resumable))
	}

	// The pause request was consumed, so the same orchestrator resumes
	// straight through the remaining files.
	resumed, summary, err := orch.Resume(ctx, session.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != store.SessionCompleted {
		t.Fatalf("expected completed, got %s", resumed.Status)
	}
	if resumed.ProcessedFiles != 4 || summary.Imported != 4 {
		t.Fatalf("resume must finish the batch, processed %d imported %d",
			resumed.ProcessedFiles, summary.Imported)
	}
}

func TestImportStoresMatchedCameraMedium(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	deck, err := st.CreateCamera(ctx, &store.Camera{
		Name: "VHS Deck", Medium: media.MediumLegacyTape,
	})
	if err != nil {
		t.Fatalf("create camera: %v", err)
	}
	if _, err := st.AddCameraPattern(ctx, &store.CameraPattern{
		CameraID: deck.ID,
		Kind:     store.PatternExtension,
		Pattern:  "mp4",
		Priority: 5,
	}); err != nil {
		t.Fatalf("add pattern: %v", err)
	}
	orch := newOrchestrator(t, cfg, st)

	dir := t.TempDir()
	clip := filepath.Join(dir, "wedding1.MP4")
	testsupport.WriteClip(t, clip, "tape capture")

	if _, _, err := orch.Start(ctx, Options{Paths: []string{clip}}); err != nil {
		t.Fatalf("import: %v", err)
	}

	files, err := st.ListFiles(ctx, 1)
	if err != nil || len(files) != 1 {
		t.Fatalf("list files: %v", err)
	}
	if files[0].CameraID == nil || *files[0].CameraID != deck.ID {
		t.Fatal("expected the pattern to attribute the file to the deck")
	}
	if files[0].Medium != media.MediumLegacyTape {
		t.Fatalf("file must carry the matched camera's medium, got %q", files[0].Medium)
	}
}
