package redpost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/blacktop/redpost/internal/logutil"
)

// FrameExtractor writes a still frame of video to out.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, video, out string) error
}

// FFmpeg extracts frames by running the ffmpeg binary.
type FFmpeg struct {
	// Path is the ffmpeg executable; "ffmpeg" is looked up in PATH when empty.
	Path string
}

// ExtractFrame writes the first frame of video to out, overwriting it.
func (f FFmpeg) ExtractFrame(ctx context.Context, video, out string) error {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-y", "-loglevel", "error", "-i", video, "-frames:v", "1", out)
	cmd.Stderr = &stderr

	logutil.Debugf("extracting thumbnail: %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", bin, err, msg)
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}

// TempThumbnail is a generated thumbnail owned by one video submission.
type TempThumbnail struct {
	Path    string
	removed bool
}

// Remove deletes the file. Only the first call has an effect.
func (t *TempThumbnail) Remove() {
	if t == nil || t.removed {
		return
	}
	t.removed = true
	if err := os.Remove(t.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logutil.Warnf("remove temporary thumbnail %s: %v", t.Path, err)
		return
	}
	logutil.Debugf("removed temporary thumbnail %s", t.Path)
}

// GenerateThumbnail extracts the first frame of video into a new temporary file.
// On failure the partial file is already gone.
func GenerateThumbnail(ctx context.Context, extractor FrameExtractor, video string) (*TempThumbnail, error) {
	file, err := os.CreateTemp("", "redpost-thumb-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create temporary thumbnail: %w", err)
	}
	thumb := &TempThumbnail{Path: file.Name()}
	if err := file.Close(); err != nil {
		thumb.Remove()
		return nil, fmt.Errorf("create temporary thumbnail: %w", err)
	}

	if err := extractor.ExtractFrame(ctx, video, thumb.Path); err != nil {
		thumb.Remove()
		return nil, fmt.Errorf("extract first frame of %s: %w", video, err)
	}
	return thumb, nil
}
