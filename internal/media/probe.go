// Package media inspects local video files with ffprobe. It is used to fill
// in a video's duration when a timeline is opened without one.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics
	DefaultTimeout = 30 * time.Second
)

// ErrNoDuration is returned when the probe succeeds but reports no usable
// duration, as for still images or broken containers.
var ErrNoDuration = errors.New("video has no duration")

// Prober reads container metadata from a video file.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

type ProbeResult struct {
	Duration   float64
	Width      int
	Height     int
	Codec      string
	FrameRate  float64
	AudioCodec string
}

// ProbeError is a non-zero ffprobe exit.
type ProbeError struct {
	ExitCode   int
	StderrTail string
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("ffprobe exited %d: %s", e.ExitCode, truncate(strings.TrimSpace(e.StderrTail), 512))
}

// FFprobe runs the ffprobe binary as a subprocess.
type FFprobe struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFprobe locates ffprobe, preferring the given path when set.
func NewFFprobe(preferred string, logger *slog.Logger) (*FFprobe, error) {
	bin, err := resolveBinary(preferred)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffprobe: %w", err)
	}
	return &FFprobe{bin: bin, timeout: DefaultTimeout, logger: logger}, nil
}

func (f *FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run ffprobe: %w", err)
		}
		f.logger.Warn("ffprobe failed",
			"exit_code", exitErr.ExitCode(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return nil, &ProbeError{ExitCode: exitErr.ExitCode(), StderrTail: stderrBuf.String()}
	}

	res, err := parseProbe(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	f.logger.Debug("ffprobe complete", "duration_ms", time.Since(start).Milliseconds(), "video_duration", res.Duration)
	return res, nil
}

// Duration probes path and returns its duration in seconds.
func Duration(ctx context.Context, p Prober, path string) (float64, error) {
	res, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if res.Duration <= 0 {
		return 0, ErrNoDuration
	}
	return res.Duration, nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	res := &ProbeResult{}
	res.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if res.Codec != "" {
				continue
			}
			res.Codec = s.CodecName
			res.Width = s.Width
			res.Height = s.Height
			res.FrameRate = parseFrameRate(s.AvgFrameRate)
			// Some containers only carry the duration on the stream.
			if res.Duration <= 0 {
				res.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}
	return res, nil
}

// parseFrameRate reads ffprobe's "num/den" rates.
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func resolveBinary(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffprobe %q not found", preferred)
	}
	p, err := exec.LookPath("ffprobe")
	if err != nil {
		return "", fmt.Errorf("no ffprobe binary found on PATH")
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
