// Package postproc implements the job handlers that run after import:
// scene detection, thumbnail generation and captioning. Each handler shells
// out to an operator-configured command template and writes its result back
// to the file row.
package postproc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"reelvault/internal/config"
	"reelvault/internal/jobs"
	"reelvault/internal/logging"
	"reelvault/internal/store"
)

// Executor abstracts external command execution so handlers are testable
// without the real tools installed.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type systemExecutor struct{}

func (systemExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// SystemExecutor runs commands on the host.
func SystemExecutor() Executor { return systemExecutor{} }

type jobPayload struct {
	FileID int64  `json:"file_id"`
	Path   string `json:"path"`
}

type handlerDeps struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	exec   Executor
}

func (d handlerDeps) loadTarget(ctx context.Context, job *store.Job) (*store.File, string, error) {
	var payload jobPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}
	file, err := d.store.GetFile(ctx, payload.FileID)
	if err != nil {
		return nil, "", fmt.Errorf("load file %d: %w", payload.FileID, err)
	}
	input := file.ManagedPath
	if input == "" {
		input = file.OriginalPath
	}
	return file, input, nil
}

// expandTemplate splits a command template into argv, substituting {input},
// {output} and {hash} tokens.
func expandTemplate(template, input, output, hash string) ([]string, error) {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return nil, errors.New("empty command template")
	}
	replacer := strings.NewReplacer("{input}", input, "{output}", output, "{hash}", hash)
	argv := make([]string, len(fields))
	for i, field := range fields {
		argv[i] = replacer.Replace(field)
	}
	return argv, nil
}

func (d handlerDeps) runTool(ctx context.Context, template, input, output, hash string) ([]byte, error) {
	argv, err := expandTemplate(template, input, output, hash)
	if err != nil {
		return nil, err
	}
	return d.exec.Run(ctx, argv[0], argv[1:]...)
}

// Register wires every configured handler into the worker. Handlers whose
// tool template is unset are skipped; their jobs will dead-letter with a
// clear message instead of silently vanishing.
func Register(worker *jobs.Worker, cfg *config.Config, st *store.Store, logger *slog.Logger, executor Executor) {
	if executor == nil {
		executor = SystemExecutor()
	}
	deps := handlerDeps{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "postproc"),
		exec:   executor,
	}
	if cfg.Tools.SceneDetect != "" {
		worker.Register(sceneDetectHandler{deps})
	}
	if cfg.Tools.Thumbnail != "" {
		worker.Register(thumbnailHandler{deps})
	}
	if cfg.Tools.Caption != "" {
		worker.Register(captionHandler{deps})
	}
}

type sceneDetectHandler struct{ handlerDeps }

func (sceneDetectHandler) Type() string { return "scene_detect" }

// Execute runs the scene-detection tool; the tool prints the number of
// detected scenes on its last output line.
func (h sceneDetectHandler) Execute(ctx context.Context, job *store.Job) error {
	file, input, err := h.loadTarget(ctx, job)
	if err != nil {
		return err
	}
	out, err := h.runTool(ctx, h.cfg.Tools.SceneDetect, input, "", file.ContentHash)
	if err != nil {
		return err
	}

	var sceneCount *int64
	lines := strings.Fields(strings.TrimSpace(string(out)))
	if len(lines) > 0 {
		if n, parseErr := strconv.ParseInt(lines[len(lines)-1], 10, 64); parseErr == nil {
			sceneCount = &n
		}
	}
	if sceneCount == nil {
		h.logger.Warn("scene tool output had no count",
			logging.Int64(logging.FieldJobID, job.ID))
	}
	return h.store.UpdateFileAnalysis(ctx, file.ID, "", "", sceneCount)
}

type thumbnailHandler struct{ handlerDeps }

func (thumbnailHandler) Type() string { return "thumbnail" }

func (h thumbnailHandler) Execute(ctx context.Context, job *store.Job) error {
	file, input, err := h.loadTarget(ctx, job)
	if err != nil {
		return err
	}

	thumbDir := filepath.Join(h.cfg.Paths.DataDir, "thumbnails")
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	output := filepath.Join(thumbDir, file.ContentHash+".jpg")

	if _, err := h.runTool(ctx, h.cfg.Tools.Thumbnail, input, output, file.ContentHash); err != nil {
		return err
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("thumbnail tool produced no output: %w", err)
	}
	return h.store.UpdateFileAnalysis(ctx, file.ID, output, "", nil)
}

type captionHandler struct{ handlerDeps }

func (captionHandler) Type() string { return "caption" }

// Execute runs the captioning tool; stdout is the caption text.
func (h captionHandler) Execute(ctx context.Context, job *store.Job) error {
	file, input, err := h.loadTarget(ctx, job)
	if err != nil {
		return err
	}
	out, err := h.runTool(ctx, h.cfg.Tools.Caption, input, "", file.ContentHash)
	if err != nil {
		return err
	}
	caption := strings.TrimSpace(string(out))
	if caption == "" {
		return errors.New("caption tool produced no text")
	}
	return h.store.UpdateFileAnalysis(ctx, file.ID, "", caption, nil)
}
