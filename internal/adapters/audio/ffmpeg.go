package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/logger"
)

// decodeFFmpeg runs ffmpeg over data and reads mono float64 PCM at the
// decoder rate from stdout. Input is staged in a temp file because MP4-family
// containers written by phones keep their index at the end, which ffmpeg
// cannot reach on a pipe.
func (d *Decoder) decodeFFmpeg(ctx context.Context, data []byte, hint string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ext := ""
	if hint != "" && strings.IndexFunc(hint, notAlnum) < 0 {
		ext = "." + hint
	}
	tmp, err := os.CreateTemp("", "catrack-clip-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("%w: stage input: %v", model.ErrDecode, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("%w: stage input: %v", model.ErrDecode, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: stage input: %v", model.ErrDecode, err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", tmp.Name(),
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(d.sampleRate),
		"-f", "f64le",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: ffmpeg: %v", model.ErrDecode, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: ffmpeg exited %d: %s", model.ErrDecode, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%w: ffmpeg: %v", model.ErrDecode, err)
	}

	d.log.Debug(ctx, "ffmpeg decode completed",
		logger.String("hint", hint),
		logger.Int("output_bytes", len(out)),
		logger.Duration("took", time.Since(start)))

	return bytesToFloat64(out), nil
}

func notAlnum(r rune) bool {
	return (r < 'a' || r > 'z') && (r < '0' || r > '9')
}

func bytesToFloat64(b []byte) []float64 {
	n := len(b) / 8
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}
