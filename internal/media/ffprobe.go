package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFprobeProber extracts metadata by shelling out to ffprobe.
type FFprobeProber struct {
	Binary string
}

type ffprobeResult struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Tags         map[string]string `json:"tags"`
}

type ffprobeFormat struct {
	Duration string            `json:"duration"`
	Tags     map[string]string `json:"tags"`
}

// Probe runs ffprobe against the path and maps the JSON output onto Metadata.
func (p FFprobeProber) Probe(ctx context.Context, path string) (Metadata, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Metadata{}, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result ffprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Metadata{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result.metadata(), nil
}

func (r ffprobeResult) metadata() Metadata {
	meta := Metadata{}
	if seconds, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64); err == nil {
		meta.DurationSeconds = seconds
	}
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		meta.Codec = stream.CodecName
		meta.Width = stream.Width
		meta.Height = stream.Height
		if rate := parseFrameRate(stream.AvgFrameRate); rate > 0 {
			meta.FrameRate = rate
		} else {
			meta.FrameRate = parseFrameRate(stream.RFrameRate)
		}
		break
	}

	tags := r.Format.Tags
	for _, stream := range r.Streams {
		if len(tags) > 0 {
			break
		}
		tags = stream.Tags
	}
	for key, value := range tags {
		switch strings.ToLower(key) {
		case "make", "com.apple.quicktime.make":
			meta.Make = strings.TrimSpace(value)
		case "model", "com.apple.quicktime.model":
			meta.Model = strings.TrimSpace(value)
		case "creation_time":
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
				meta.RecordedAt = ts
			}
		}
	}
	return meta
}

func parseFrameRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return rate
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
