// Package importer drives the import pipeline: scan, hash, dedup, camera
// identification, optional copy into managed storage, registry commit, and
// downstream job enqueueing. Every step persists the session row before the
// next one starts, so an interrupted run resumes where it left off instead
// of redoing completed work.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"reelvault/internal/camera"
	"reelvault/internal/config"
	"reelvault/internal/fileutil"
	"reelvault/internal/hashing"
	"reelvault/internal/logging"
	"reelvault/internal/media"
	"reelvault/internal/scanner"
	"reelvault/internal/store"
)

// Pipeline step indexes recorded in ImportSession.LastStep. A session
// re-enters at the first step it has not completed.
const (
	stepScanning = iota + 1
	stepHashing
	stepCopying
	stepValidating
	stepFinalizing
)

// Options describe one import request.
type Options struct {
	Paths           []string
	ProjectID       *int64
	CopyToManaged   bool
	FootageOverride string
}

// FileOutcome records what happened to one discovered file.
type FileOutcome struct {
	Path        string `json:"path"`
	Digest      string `json:"digest,omitempty"`
	FileID      int64  `json:"file_id,omitempty"`
	ManagedPath string `json:"managed_path,omitempty"`
	Duplicate   bool   `json:"duplicate,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Summary is the aggregate result of a session.
type Summary struct {
	Total      int
	Imported   int
	Duplicates int
	Skipped    int
	Errors     int
	Files      []FileOutcome
}

// Progress is a live event emitted between files.
type Progress struct {
	SessionID   string
	Processed   int
	Total       int
	CurrentFile string
}

// errPaused signals a cooperative stop between files; run converts it into
// the paused session state.
var errPaused = errors.New("pause requested")

// Orchestrator runs import sessions. It assumes single-session invocation
// per project; callers serialize concurrent requests.
type Orchestrator struct {
	cfg      *config.Config
	store    *store.Store
	matcher  *camera.Matcher
	prober   media.Prober
	logger   *slog.Logger
	progress func(Progress)
	pause    atomic.Bool
}

// RequestPause asks the running session to stop after the file in flight.
// The session lands in the paused state with its checkpoints intact and can
// be resumed later; the request is consumed, so a subsequent Resume on the
// same Orchestrator runs normally.
func (o *Orchestrator) RequestPause() {
	o.pause.Store(true)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a live progress callback.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithProber overrides metadata extraction.
func WithProber(prober media.Prober) Option {
	return func(o *Orchestrator) { o.prober = prober }
}

// New constructs an Orchestrator.
func New(cfg *config.Config, st *store.Store, matcher *camera.Matcher, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		store:   st,
		matcher: matcher,
		prober:  media.FFprobeProber{},
		logger:  logging.NewComponentLogger(logger, "importer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start creates a new session and runs it to a terminal state.
func (o *Orchestrator) Start(ctx context.Context, opts Options) (*store.ImportSession, *Summary, error) {
	if len(opts.Paths) == 0 {
		return nil, nil, errors.New("import: no paths given")
	}
	sourceJSON, err := json.Marshal(opts.Paths)
	if err != nil {
		return nil, nil, fmt.Errorf("import: encode source paths: %w", err)
	}

	session, err := o.store.CreateSession(ctx, &store.ImportSession{
		ProjectID:       opts.ProjectID,
		SourcePathsJSON: string(sourceJSON),
		CopyToManaged:   opts.CopyToManaged || o.cfg.Import.CopyToManaged,
		FootageOverride: opts.FootageOverride,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("import: create session: %w", err)
	}

	summary, err := o.run(ctx, session)
	return session, summary, err
}

// Resume picks an interrupted session back up at its last completed step.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) (*store.ImportSession, *Summary, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("import: load session: %w", err)
	}
	if !session.CanResume || !session.Status.Resumable() {
		return nil, nil, fmt.Errorf("import: session %s is not resumable (status %s)", session.ID, session.Status)
	}

	o.logger.Info("resuming session",
		logging.String(logging.FieldSessionID, session.ID),
		logging.Int("last_step", session.LastStep))
	summary, err := o.run(ctx, session)
	return session, summary, err
}

// run executes the state machine from the session's current position.
func (o *Orchestrator) run(ctx context.Context, session *store.ImportSession) (*Summary, error) {
	log := o.logger.With(logging.String(logging.FieldSessionID, session.ID))

	if session.LastStep < stepScanning {
		if err := o.scanStep(ctx, session, log); err != nil {
			return nil, o.failSession(ctx, session, err)
		}
	}
	if done, err := o.checkInterrupted(ctx, session); done {
		return o.summarize(session), err
	}

	if session.LastStep < stepHashing {
		if err := o.hashStep(ctx, session, log); err != nil {
			if errors.Is(err, context.Canceled) {
				return o.summarize(session), o.cancelSession(ctx, session)
			}
			return nil, o.failSession(ctx, session, err)
		}
	}
	if done, err := o.checkInterrupted(ctx, session); done {
		return o.summarize(session), err
	}

	if session.LastStep < stepCopying {
		if err := o.copyStep(ctx, session, log); err != nil {
			if errors.Is(err, errPaused) {
				return o.summarize(session), o.pauseSession(ctx, session)
			}
			if errors.Is(err, context.Canceled) {
				return o.summarize(session), o.cancelSession(ctx, session)
			}
			return nil, o.failSession(ctx, session, err)
		}
	}
	if done, err := o.checkInterrupted(ctx, session); done {
		return o.summarize(session), err
	}

	if session.LastStep < stepValidating {
		if err := o.validateStep(ctx, session, log); err != nil {
			return nil, o.failSession(ctx, session, err)
		}
	}
	if done, err := o.checkInterrupted(ctx, session); done {
		return o.summarize(session), err
	}

	if session.LastStep < stepFinalizing {
		if err := o.finalizeStep(ctx, session, log); err != nil {
			return nil, o.failSession(ctx, session, err)
		}
	}

	return o.summarize(session), nil
}

// checkInterrupted handles the two cooperative stop requests at a step
// boundary: pause wins over nothing, cancellation over pause.
func (o *Orchestrator) checkInterrupted(ctx context.Context, session *store.ImportSession) (bool, error) {
	if ctx.Err() != nil {
		return true, o.cancelSession(ctx, session)
	}
	if o.pause.Swap(false) {
		return true, o.pauseSession(ctx, session)
	}
	return false, nil
}

// transition persists the session before the step body runs, keeping the
// stored state ahead of the work.
func (o *Orchestrator) transition(ctx context.Context, session *store.ImportSession, status store.SessionStatus) error {
	session.Status = status
	if err := o.store.UpdateSession(context.WithoutCancel(ctx), session); err != nil {
		return fmt.Errorf("persist %s transition: %w", status, err)
	}
	return nil
}

type scanPayload struct {
	Files      []string `json:"files"`
	TotalBytes int64    `json:"total_bytes"`
	Skipped    int      `json:"skipped"`
}

func (o *Orchestrator) scanStep(ctx context.Context, session *store.ImportSession, log *slog.Logger) error {
	if err := o.transition(ctx, session, store.SessionScanning); err != nil {
		return err
	}

	var paths []string
	if err := json.Unmarshal([]byte(session.SourcePathsJSON), &paths); err != nil {
		return fmt.Errorf("decode source paths: %w", err)
	}

	// Unreadable explicit paths are per-file failures, not a fatal scan
	// error: carry them into the batch so hashing records them.
	skipped := 0
	var missing []string
	readable := paths[:0]
	for _, path := range paths {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			missing = append(missing, path)
		case !info.IsDir() && !media.Supported(path):
			skipped++
		default:
			readable = append(readable, path)
		}
	}

	result, err := scanner.Expand(readable)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	files := append(result.Files, missing...)
	sort.Strings(files)

	var totalBytes int64
	for _, file := range files {
		if info, err := os.Stat(file); err == nil {
			totalBytes += info.Size()
		}
	}

	payload, err := json.Marshal(scanPayload{Files: files, TotalBytes: totalBytes, Skipped: skipped})
	if err != nil {
		return fmt.Errorf("encode scan payload: %w", err)
	}
	session.ScanJSON = string(payload)
	session.TotalFiles = int64(len(files))
	session.TotalBytes = totalBytes
	session.LastStep = stepScanning
	log.Info("scan complete", logging.Int("files", len(files)), logging.Int64("bytes", totalBytes))
	return o.transition(ctx, session, store.SessionScanning)
}

type hashPayload struct {
	Digests map[string]string `json:"digests"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (o *Orchestrator) hashStep(ctx context.Context, session *store.ImportSession, log *slog.Logger) error {
	if err := o.transition(ctx, session, store.SessionHashing); err != nil {
		return err
	}

	var scan scanPayload
	if err := json.Unmarshal([]byte(session.ScanJSON), &scan); err != nil {
		return fmt.Errorf("decode scan payload: %w", err)
	}

	pool := hashing.NewPool(o.cfg.Import.HashWorkers)
	results, err := pool.HashAll(ctx, scan.Files)
	if err != nil {
		return err
	}

	payload := hashPayload{Digests: make(map[string]string, len(results))}
	for path, result := range results {
		if result.Err != nil {
			if payload.Errors == nil {
				payload.Errors = make(map[string]string)
			}
			payload.Errors[path] = result.Err.Error()
			continue
		}
		payload.Digests[path] = result.Digest
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode hash payload: %w", err)
	}
	session.HashJSON = string(encoded)
	session.LastStep = stepHashing
	log.Info("hashing complete",
		logging.Int("hashed", len(payload.Digests)),
		logging.Int("failed", len(payload.Errors)))
	return o.transition(ctx, session, store.SessionHashing)
}

type copyPayload struct {
	Outcomes map[string]FileOutcome `json:"outcomes"`
}

func (o *Orchestrator) copyStep(ctx context.Context, session *store.ImportSession, log *slog.Logger) error {
	if err := o.transition(ctx, session, store.SessionCopying); err != nil {
		return err
	}

	var scan scanPayload
	if err := json.Unmarshal([]byte(session.ScanJSON), &scan); err != nil {
		return fmt.Errorf("decode scan payload: %w", err)
	}
	var hashes hashPayload
	if err := json.Unmarshal([]byte(session.HashJSON), &hashes); err != nil {
		return fmt.Errorf("decode hash payload: %w", err)
	}
	ledger := copyPayload{Outcomes: make(map[string]FileOutcome)}
	if session.CopyJSON != "" {
		if err := json.Unmarshal([]byte(session.CopyJSON), &ledger); err != nil {
			return fmt.Errorf("decode copy ledger: %w", err)
		}
		if ledger.Outcomes == nil {
			ledger.Outcomes = make(map[string]FileOutcome)
		}
	}

	checkpoint := o.cfg.Import.CheckpointEvery
	if checkpoint < 1 {
		checkpoint = 1
	}
	sinceCheckpoint := 0

	var eventDate *time.Time
	if session.ProjectID != nil {
		if project, err := o.store.GetProject(ctx, *session.ProjectID); err == nil {
			eventDate = project.EventDate
		}
	}

	for _, path := range scan.Files {
		// Cooperative cancellation and pause between files only; a file in
		// flight always lands fully in the ledger or not at all.
		if err := ctx.Err(); err != nil {
			if persistErr := o.persistLedger(ctx, session, &ledger); persistErr != nil {
				return persistErr
			}
			return err
		}
		if o.pause.Swap(false) {
			if persistErr := o.persistLedger(ctx, session, &ledger); persistErr != nil {
				return persistErr
			}
			return errPaused
		}
		// Already handled by a previous run of this session.
		if _, done := ledger.Outcomes[path]; done {
			continue
		}

		outcome := o.processFile(ctx, session, path, hashes, eventDate, log)
		ledger.Outcomes[path] = outcome

		session.ProcessedFiles++
		if info, err := os.Stat(path); err == nil {
			session.ProcessedBytes += info.Size()
		}
		switch {
		case outcome.Error != "":
			session.ErrorFiles++
		case outcome.Duplicate:
			session.DuplicateFiles++
		}

		o.emitProgress(Progress{
			SessionID:   session.ID,
			Processed:   int(session.ProcessedFiles),
			Total:       int(session.TotalFiles),
			CurrentFile: path,
		})

		sinceCheckpoint++
		if sinceCheckpoint >= checkpoint {
			if err := o.persistLedger(ctx, session, &ledger); err != nil {
				return err
			}
			sinceCheckpoint = 0
		}
	}

	if err := o.persistLedger(ctx, session, &ledger); err != nil {
		return err
	}
	session.LastStep = stepCopying
	log.Info("copy step complete",
		logging.Int64("processed", session.ProcessedFiles),
		logging.Int64("duplicates", session.DuplicateFiles),
		logging.Int64("errors", session.ErrorFiles))
	return o.transition(ctx, session, store.SessionCopying)
}

func (o *Orchestrator) persistLedger(ctx context.Context, session *store.ImportSession, ledger *copyPayload) error {
	encoded, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode copy ledger: %w", err)
	}
	session.CopyJSON = string(encoded)
	if err := o.store.UpdateSession(context.WithoutCancel(ctx), session); err != nil {
		return fmt.Errorf("persist copy ledger: %w", err)
	}
	return nil
}

// processFile runs dedup, identification, optional copy, registry insert and
// job enqueueing for one file. Per-file failures land in the outcome; a
// storage fault aborts the session via the returned error message prefix.
func (o *Orchestrator) processFile(ctx context.Context, session *store.ImportSession, path string, hashes hashPayload, eventDate *time.Time, log *slog.Logger) FileOutcome {
	outcome := FileOutcome{Path: path}

	if msg, failed := hashes.Errors[path]; failed {
		outcome.Error = msg
		return outcome
	}
	digest, ok := hashes.Digests[path]
	if !ok {
		outcome.Error = "no digest recorded"
		return outcome
	}
	outcome.Digest = digest

	existing, err := o.store.GetFileByHash(ctx, digest)
	if err == nil {
		outcome.Duplicate = true
		outcome.FileID = existing.ID
		if session.ProjectID != nil {
			if linkErr := o.store.LinkFileToProject(ctx, *session.ProjectID, existing.ID); linkErr != nil {
				outcome.Error = linkErr.Error()
			}
		}
		return outcome
	}
	if !errors.Is(err, store.ErrNotFound) {
		outcome.Error = err.Error()
		return outcome
	}

	meta, probeErr := media.ProbeWithTimeout(ctx, o.prober, path,
		time.Duration(o.cfg.Import.ProbeTimeout)*time.Second)
	if probeErr != nil {
		// Metadata is best-effort; identification falls back to patterns.
		log.Debug("probe failed", logging.String("file", path), logging.Error(probeErr))
		meta = media.Metadata{}
	}

	file := o.buildFile(session, path, digest, meta, eventDate)

	if match := o.matcher.Match(path, "", &meta); match != nil {
		if match.CameraID != nil {
			file.CameraID = match.CameraID
		}
		// The matched camera's medium classifies the file.
		file.Medium = match.Medium
	}

	if session.CopyToManaged {
		managed, copyErr := fileutil.CopyToManaged(path, o.cfg.Paths.ManagedDir, digest, o.cfg.Import.VerifyCopies)
		if copyErr != nil {
			outcome.Error = copyErr.Error()
			return outcome
		}
		file.ManagedPath = managed
		outcome.ManagedPath = managed
	}

	inserted, err := o.store.InsertFile(ctx, file)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateFile) {
			outcome.Duplicate = true
			outcome.FileID = inserted.ID
			return outcome
		}
		outcome.Error = err.Error()
		return outcome
	}
	outcome.FileID = inserted.ID

	if session.ProjectID != nil {
		if err := o.store.LinkFileToProject(ctx, *session.ProjectID, inserted.ID); err != nil {
			outcome.Error = err.Error()
			return outcome
		}
	}

	if err := o.enqueueFollowups(ctx, session, inserted); err != nil {
		log.Warn("enqueue followup jobs failed",
			logging.String("file", path), logging.Error(err))
	}
	return outcome
}

func (o *Orchestrator) buildFile(session *store.ImportSession, path, digest string, meta media.Metadata, eventDate *time.Time) *store.File {
	file := &store.File{
		ContentHash:   digest,
		OriginalName:  filepath.Base(path),
		OriginalPath:  path,
		Extension:     strings.ToLower(filepath.Ext(path)),
		FileKind:      media.KindForPath(path),
		DetectedMake:  meta.Make,
		DetectedModel: meta.Model,
		Duration:      meta.DurationSeconds,
		Width:         meta.Width,
		Height:        meta.Height,
		FrameRate:     meta.FrameRate,
		Codec:         meta.Codec,
	}
	if !meta.RecordedAt.IsZero() {
		recorded := meta.RecordedAt
		file.RecordedAt = &recorded
	}
	if info, err := os.Stat(path); err == nil {
		file.SizeBytes = info.Size()
	}
	switch {
	case session.FootageOverride != "":
		if footage, ok := media.ParseFootageType(session.FootageOverride); ok {
			file.FootageType = footage
		}
	case eventDate != nil && !meta.RecordedAt.IsZero():
		file.FootageType = media.ClassifyFootage(meta.RecordedAt, *eventDate)
	}
	return file
}

// enqueueFollowups schedules downstream analysis for a newly imported file.
// Thumbnails wait for scene detection so they can use the detected scenes.
func (o *Orchestrator) enqueueFollowups(ctx context.Context, session *store.ImportSession, file *store.File) error {
	if file.FileKind != media.KindVideo {
		return nil
	}
	payload, err := json.Marshal(map[string]any{"file_id": file.ID, "path": file.OriginalPath})
	if err != nil {
		return fmt.Errorf("encode job payload: %w", err)
	}

	sceneJob, err := o.store.EnqueueJob(ctx, &store.Job{
		JobType:     "scene_detect",
		PayloadJSON: string(payload),
		FileID:      &file.ID,
		ProjectID:   session.ProjectID,
		Priority:    5,
		MaxRetries:  o.cfg.Worker.DefaultMaxRetries,
	})
	if err != nil {
		return err
	}
	_, err = o.store.EnqueueJob(ctx, &store.Job{
		JobType:     "thumbnail",
		PayloadJSON: string(payload),
		FileID:      &file.ID,
		ProjectID:   session.ProjectID,
		Priority:    3,
		DependsOn:   &sceneJob.ID,
		MaxRetries:  o.cfg.Worker.DefaultMaxRetries,
	})
	return err
}

type validatePayload struct {
	Validated int      `json:"validated"`
	Missing   []string `json:"missing,omitempty"`
}

// validateStep confirms that every file the copy step committed is actually
// present on disk where the registry says it is.
func (o *Orchestrator) validateStep(ctx context.Context, session *store.ImportSession, log *slog.Logger) error {
	if err := o.transition(ctx, session, store.SessionValidating); err != nil {
		return err
	}

	var ledger copyPayload
	if session.CopyJSON != "" {
		if err := json.Unmarshal([]byte(session.CopyJSON), &ledger); err != nil {
			return fmt.Errorf("decode copy ledger: %w", err)
		}
	}

	payload := validatePayload{}
	for _, outcome := range ledger.Outcomes {
		if outcome.Error != "" || outcome.Duplicate {
			continue
		}
		target := outcome.ManagedPath
		if target == "" {
			target = outcome.Path
		}
		if _, err := os.Stat(target); err != nil {
			payload.Missing = append(payload.Missing, target)
			continue
		}
		payload.Validated++
	}
	if len(payload.Missing) > 0 {
		return fmt.Errorf("validation: %d imported files missing on disk", len(payload.Missing))
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode validate payload: %w", err)
	}
	session.ValidateJSON = string(encoded)
	session.LastStep = stepValidating
	log.Info("validation complete", logging.Int("validated", payload.Validated))
	return o.transition(ctx, session, store.SessionValidating)
}

func (o *Orchestrator) finalizeStep(ctx context.Context, session *store.ImportSession, log *slog.Logger) error {
	if err := o.transition(ctx, session, store.SessionFinalizing); err != nil {
		return err
	}
	session.LastStep = stepFinalizing
	session.CanResume = false
	session.ErrorMessage = ""
	if err := o.transition(ctx, session, store.SessionCompleted); err != nil {
		return err
	}
	log.Info("session completed",
		logging.Int64("processed", session.ProcessedFiles),
		logging.Int64("duplicates", session.DuplicateFiles),
		logging.Int64("errors", session.ErrorFiles))
	return nil
}

// failSession marks the session failed while keeping it resumable; storage
// faults are usually transient (full disk, dropped network share).
func (o *Orchestrator) failSession(ctx context.Context, session *store.ImportSession, cause error) error {
	session.Status = store.SessionFailed
	session.ErrorMessage = cause.Error()
	if err := o.store.UpdateSession(context.WithoutCancel(ctx), session); err != nil {
		return errors.Join(cause, err)
	}
	o.logger.Error("session failed",
		logging.String(logging.FieldSessionID, session.ID), logging.Error(cause))
	return cause
}

// pauseSession parks the session between files. Checkpoints and counters
// stay as persisted, so a later Resume continues where the pause landed.
func (o *Orchestrator) pauseSession(ctx context.Context, session *store.ImportSession) error {
	session.Status = store.SessionPaused
	if err := o.store.UpdateSession(context.WithoutCancel(ctx), session); err != nil {
		return err
	}
	o.logger.Info("session paused",
		logging.String(logging.FieldSessionID, session.ID),
		logging.Int64("processed", session.ProcessedFiles))
	return nil
}

// cancelSession records a user-initiated stop; distinct from failed and from
// paused, and terminal.
func (o *Orchestrator) cancelSession(ctx context.Context, session *store.ImportSession) error {
	session.Status = store.SessionCancelled
	if err := o.store.UpdateSession(context.WithoutCancel(ctx), session); err != nil {
		return err
	}
	o.logger.Info("session cancelled",
		logging.String(logging.FieldSessionID, session.ID),
		logging.Int64("processed", session.ProcessedFiles))
	return nil
}

func (o *Orchestrator) emitProgress(progress Progress) {
	if o.progress != nil {
		o.progress(progress)
	}
}

// summarize folds the persisted step payloads into the aggregate result.
func (o *Orchestrator) summarize(session *store.ImportSession) *Summary {
	summary := &Summary{
		Total:      int(session.TotalFiles),
		Duplicates: int(session.DuplicateFiles),
		Errors:     int(session.ErrorFiles),
	}
	var scan scanPayload
	if session.ScanJSON != "" {
		if err := json.Unmarshal([]byte(session.ScanJSON), &scan); err == nil {
			summary.Skipped = scan.Skipped
		}
	}
	var ledger copyPayload
	if session.CopyJSON != "" {
		if err := json.Unmarshal([]byte(session.CopyJSON), &ledger); err == nil {
			for _, path := range scan.Files {
				outcome, ok := ledger.Outcomes[path]
				if !ok {
					continue
				}
				summary.Files = append(summary.Files, outcome)
				if outcome.Error == "" && !outcome.Duplicate {
					summary.Imported++
				}
			}
		}
	}
	return summary
}

