package redpost

import (
	"context"
	"strings"
)

// PostType selects the submission path.
type PostType string

const (
	PostText  PostType = "text"
	PostVideo PostType = "video"
)

// SupportedTypes lists the post types accepted in a config, in display order.
var SupportedTypes = []PostType{PostText, PostVideo}

// PostConfig is a validated post configuration. It is not modified after Validate returns it.
type PostConfig struct {
	Type      PostType
	Title     string
	Subreddit string

	Body          string
	VideoPath     string
	ThumbnailPath string
	Flair         string

	FollowUpComment string

	Options VideoOptions
}

// HasFollowUp reports whether a follow-up comment should be posted. Text made
// only of whitespace does not count.
func (c *PostConfig) HasFollowUp() bool {
	return strings.TrimSpace(c.FollowUpComment) != ""
}

// VideoOptions holds the optional video flags. A nil field leaves the
// platform default in place.
type VideoOptions struct {
	NSFW     *bool
	Spoiler  *bool
	VideoGIF *bool
}

// FlairOption is one user-selectable link flair of a subreddit.
type FlairOption struct {
	Text         string
	ID           string
	TextEditable bool
}

// Submission is the handle of a created post.
type Submission struct {
	ID        string
	Name      string
	URL       string
	Permalink string
}

// TextPost is the payload of a self post.
type TextPost struct {
	Subreddit string
	Title     string
	Body      string
	FlairID   string
}

// VideoPost is the payload of a video post.
type VideoPost struct {
	Subreddit     string
	Title         string
	VideoPath     string
	ThumbnailPath string
	FlairID       string
	Options       VideoOptions
}

// Client abstracts the remote platform calls a run needs.
type Client interface {
	LinkFlairs(ctx context.Context, subreddit string) ([]FlairOption, error)
	SubmitText(ctx context.Context, post TextPost) (*Submission, error)
	SubmitVideo(ctx context.Context, post VideoPost) (*Submission, error)
	Reply(ctx context.Context, sub *Submission, text string) error
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
