package redpost

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/blacktop/redpost/internal/logutil"
)

// mp4Header is enough of an MP4 file for content sniffing.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2',
	0x00, 0x00, 0x00, 0x08, 'f', 'r', 'e', 'e',
}

// captureLog sends log output to a buffer for the rest of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logutil.SetOutput(&buf)
	t.Cleanup(func() { logutil.SetOutput(os.Stderr) })
	return &buf
}

// fakeClient records every call made against it.
type fakeClient struct {
	Flairs   []FlairOption
	FlairErr error

	Sub       *Submission
	SubmitErr error
	ReplyErr  error

	FlairCalls []string
	TextPosts  []TextPost
	VideoPosts []VideoPost
	Replies    []string

	// ThumbnailExisted reports whether the thumbnail was on disk when SubmitVideo ran.
	ThumbnailExisted bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		Sub: &Submission{ID: "abc123", Name: "t3_abc123", URL: "https://www.reddit.com/r/test/comments/abc123/hi/"},
	}
}

func (f *fakeClient) LinkFlairs(ctx context.Context, subreddit string) ([]FlairOption, error) {
	f.FlairCalls = append(f.FlairCalls, subreddit)
	if f.FlairErr != nil {
		return nil, f.FlairErr
	}
	return f.Flairs, nil
}

func (f *fakeClient) SubmitText(ctx context.Context, post TextPost) (*Submission, error) {
	f.TextPosts = append(f.TextPosts, post)
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	return f.Sub, nil
}

func (f *fakeClient) SubmitVideo(ctx context.Context, post VideoPost) (*Submission, error) {
	f.VideoPosts = append(f.VideoPosts, post)
	if post.ThumbnailPath != "" {
		_, err := os.Stat(post.ThumbnailPath)
		f.ThumbnailExisted = err == nil
	}
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	return f.Sub, nil
}

func (f *fakeClient) Reply(ctx context.Context, sub *Submission, text string) error {
	f.Replies = append(f.Replies, text)
	return f.ReplyErr
}

func (f *fakeClient) calls() int {
	return len(f.FlairCalls) + len(f.TextPosts) + len(f.VideoPosts) + len(f.Replies)
}

// fakeExtractor writes a small JPEG header to the output path, or fails.
type fakeExtractor struct {
	Fail  bool
	Calls []string
	Outs  []string
}

var errExtract = errors.New("exit status 1")

func (f *fakeExtractor) ExtractFrame(ctx context.Context, video, out string) error {
	f.Calls = append(f.Calls, video)
	f.Outs = append(f.Outs, out)
	if f.Fail {
		os.WriteFile(out, []byte("partial"), 0o600)
		return errExtract
	}
	return os.WriteFile(out, []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, 0o600)
}
