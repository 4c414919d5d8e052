package redpost

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateThumbnail(t *testing.T) {
	ext := &fakeExtractor{}
	thumb, err := GenerateThumbnail(context.Background(), ext, "clip.mp4")
	if err != nil {
		t.Fatalf("GenerateThumbnail() error = %v", err)
	}
	if len(ext.Calls) != 1 || ext.Calls[0] != "clip.mp4" {
		t.Errorf("extractor calls = %v", ext.Calls)
	}
	if !strings.HasPrefix(filepath.Base(thumb.Path), "redpost-thumb-") {
		t.Errorf("Path = %q", thumb.Path)
	}
	if _, err := os.Stat(thumb.Path); err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}

	thumb.Remove()
	if _, err := os.Stat(thumb.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("thumbnail still present after Remove: %v", err)
	}
	thumb.Remove()
}

func TestGenerateThumbnailFailureRemovesPartial(t *testing.T) {
	ext := &fakeExtractor{Fail: true}
	thumb, err := GenerateThumbnail(context.Background(), ext, "clip.mp4")
	if err == nil {
		t.Fatal("GenerateThumbnail() succeeded")
	}
	if thumb != nil {
		t.Errorf("thumb = %+v, want nil", thumb)
	}
	if !errors.Is(err, errExtract) {
		t.Errorf("error = %v, want wrapped extractor error", err)
	}
	if _, err := os.Stat(ext.Outs[0]); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial thumbnail left behind: %v", err)
	}
}

func TestTempThumbnailRemoveNil(t *testing.T) {
	var thumb *TempThumbnail
	thumb.Remove()
}

func TestFFmpegMissingBinary(t *testing.T) {
	out := filepath.Join(t.TempDir(), "thumb.jpg")
	err := FFmpeg{Path: filepath.Join(t.TempDir(), "no-such-ffmpeg")}.ExtractFrame(context.Background(), "clip.mp4", out)
	if err == nil {
		t.Fatal("ExtractFrame() succeeded without a binary")
	}
}

func TestFFmpegNonZeroExit(t *testing.T) {
	bin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	out := filepath.Join(t.TempDir(), "thumb.jpg")
	err = FFmpeg{Path: bin}.ExtractFrame(context.Background(), "clip.mp4", out)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("ExtractFrame() error = %v, want *exec.ExitError", err)
	}
}
