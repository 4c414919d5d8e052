package redpost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/blacktop/redpost/internal/logutil"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultFollowUpDelay is how long a run waits before posting the follow-up comment.
const DefaultFollowUpDelay = 30 * time.Second

// State is the furthest point a run reached.
type State int

const (
	StateIdle State = iota
	StateValidated
	StateFlairResolved
	StateFlairSkipped
	StateSubmitted
	StateFollowUpPosted
	StateFollowUpFailed
	StateFollowUpSkipped
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateValidated:       "validated",
	StateFlairResolved:   "flair-resolved",
	StateFlairSkipped:    "flair-skipped",
	StateSubmitted:       "submitted",
	StateFollowUpPosted:  "follow-up-posted",
	StateFollowUpFailed:  "follow-up-failed",
	StateFollowUpSkipped: "follow-up-skipped",
	StateFailed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result describes a finished run.
type Result struct {
	State      State
	Submission *Submission
	FlairID    string
	// FollowUpErr is set when the post went up but the follow-up comment did not.
	FollowUpErr error
}

// Workflow submits one configured post.
type Workflow struct {
	Client    Client
	Extractor FrameExtractor
	Out       io.Writer

	// FollowUpDelay defaults to DefaultFollowUpDelay when zero.
	FollowUpDelay time.Duration
	// Wait blocks for d; nil uses a context-aware timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// Run validates local preconditions, resolves the flair, submits the post and
// posts the follow-up comment. A failed follow-up is reported in the Result,
// not as an error.
func (w *Workflow) Run(ctx context.Context, cfg *PostConfig) (*Result, error) {
	res := &Result{State: StateValidated}

	if err := Preflight(cfg); err != nil {
		res.State = StateFailed
		return res, err
	}

	flairID, err := ResolveFlair(ctx, w.Client, cfg.Subreddit, cfg.Flair)
	if err != nil {
		res.State = StateFailed
		return res, err
	}
	res.FlairID = flairID
	if flairID != "" {
		res.State = StateFlairResolved
	} else {
		res.State = StateFlairSkipped
	}

	var sub *Submission
	switch cfg.Type {
	case PostText:
		sub, err = w.submitText(ctx, cfg, flairID)
	case PostVideo:
		sub, err = w.submitVideo(ctx, cfg, flairID)
	default:
		err = &ConfigError{Field: "type", Reason: fmt.Sprintf("unsupported post type '%s'", cfg.Type)}
	}
	if err != nil {
		res.State = StateFailed
		return res, err
	}
	res.Submission = sub
	res.State = StateSubmitted

	w.followUp(ctx, cfg, res)
	return res, nil
}

func (w *Workflow) submitText(ctx context.Context, cfg *PostConfig, flairID string) (*Submission, error) {
	logutil.Debugf("submitting text post: subreddit=%s flair_id=%s", cfg.Subreddit, flairID)
	sub, err := w.Client.SubmitText(ctx, TextPost{
		Subreddit: cfg.Subreddit,
		Title:     cfg.Title,
		Body:      cfg.Body,
		FlairID:   flairID,
	})
	if err != nil {
		return nil, fmt.Errorf("submit post: %w", err)
	}

	fmt.Fprintf(w.out(), "Post submitted: %s\n", submissionLink(sub))
	if flairID != "" {
		fmt.Fprintf(w.out(), "Flair '%s' applied.\n", cfg.Flair)
	}
	return sub, nil
}

func (w *Workflow) submitVideo(ctx context.Context, cfg *PostConfig, flairID string) (*Submission, error) {
	post := VideoPost{
		Subreddit: cfg.Subreddit,
		Title:     cfg.Title,
		VideoPath: cfg.VideoPath,
		FlairID:   flairID,
		Options:   cfg.Options,
	}

	thumb := w.thumbnail(ctx, cfg)
	defer thumb.Remove()
	if thumb != nil {
		post.ThumbnailPath = thumb.Path
	} else if usableFile(cfg.ThumbnailPath) {
		post.ThumbnailPath = cfg.ThumbnailPath
	}

	logutil.Debugf("submitting video post: subreddit=%s thumbnail=%s flair_id=%s", cfg.Subreddit, post.ThumbnailPath, flairID)
	sub, err := w.Client.SubmitVideo(ctx, post)
	thumb.Remove()
	if err != nil {
		return nil, fmt.Errorf("submit video post: %w", err)
	}

	fmt.Fprintf(w.out(), "Video post submitted: %s\n", submissionLink(sub))
	if flairID != "" {
		fmt.Fprintf(w.out(), "Flair '%s' applied.\n", cfg.Flair)
	}
	return sub, nil
}

// thumbnail generates a temporary thumbnail when the config has no usable one.
// It returns nil when an explicit thumbnail is used or generation failed.
func (w *Workflow) thumbnail(ctx context.Context, cfg *PostConfig) *TempThumbnail {
	if cfg.ThumbnailPath != "" {
		if usableFile(cfg.ThumbnailPath) {
			return nil
		}
		if _, err := os.Stat(cfg.ThumbnailPath); err == nil {
			logutil.Warnf("thumbnail '%s' is not a usable file, generating one from the video", cfg.ThumbnailPath)
		} else {
			logutil.Warnf("thumbnail file not found at '%s', generating one from the video", cfg.ThumbnailPath)
		}
	}
	if w.Extractor == nil {
		logutil.Warnf("no frame extractor configured, submitting video without a thumbnail")
		return nil
	}

	thumb, err := GenerateThumbnail(ctx, w.Extractor, cfg.VideoPath)
	if err != nil {
		logutil.Warnf("thumbnail generation failed, submitting video without a thumbnail: %v", err)
		return nil
	}
	logutil.Debugf("generated thumbnail %s", thumb.Path)
	return thumb
}

func (w *Workflow) followUp(ctx context.Context, cfg *PostConfig, res *Result) {
	if !cfg.HasFollowUp() {
		res.State = StateFollowUpSkipped
		return
	}
	text := cfg.FollowUpComment

	delay := w.FollowUpDelay
	if delay <= 0 {
		delay = DefaultFollowUpDelay
	}
	wait := w.Wait
	if wait == nil {
		wait = sleep
	}

	logutil.Infof("waiting %s before posting follow-up comment", delay)
	err := wait(ctx, delay)
	if err == nil {
		err = w.Client.Reply(ctx, res.Submission, text)
	}
	if err != nil {
		res.State = StateFollowUpFailed
		res.FollowUpErr = fmt.Errorf("post follow-up comment: %w", err)
		logutil.Errorf("%v", res.FollowUpErr)
		return
	}

	res.State = StateFollowUpPosted
	fmt.Fprintln(w.out(), "Follow-up comment posted.")
}

func (w *Workflow) out() io.Writer {
	if w.Out == nil {
		return io.Discard
	}
	return w.Out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var tick <-chan time.Time
	if logutil.Interactive() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	deadline := time.Now().Add(d)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-tick:
			logutil.Infof("%s until follow-up comment", time.Until(deadline).Round(time.Second))
		}
	}
}

// Preflight checks local files a post depends on: the video must exist and
// look like a video. It makes no remote calls.
func Preflight(cfg *PostConfig) error {
	if cfg.Type != PostVideo {
		return nil
	}
	path := cfg.VideoPath
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &PreflightError{Path: path, Reason: "video file not found"}
		}
		return &PreflightError{Path: path, Reason: fmt.Sprintf("video file not readable (%v)", err)}
	}
	if info.IsDir() {
		return &PreflightError{Path: path, Reason: "video path is a directory"}
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return &PreflightError{Path: path, Reason: fmt.Sprintf("video file not readable (%v)", err)}
	}
	if mime, _, _ := strings.Cut(mtype.String(), ";"); !strings.HasPrefix(mime, "video/") {
		return &PreflightError{Path: path, Reason: fmt.Sprintf("not a video file (detected %s)", mime)}
	}
	return nil
}

func usableFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func submissionLink(sub *Submission) string {
	if sub == nil {
		return ""
	}
	if sub.URL != "" {
		return sub.URL
	}
	return sub.Permalink
}
