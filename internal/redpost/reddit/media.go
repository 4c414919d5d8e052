package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blacktop/redpost/internal/logutil"
	"github.com/blacktop/redpost/internal/redpost"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/websocket"
)

const processingTimeout = 2 * time.Minute

var commentsIDRe = regexp.MustCompile(`/comments/([a-z0-9]+)`)

// SubmitVideo uploads the video (and thumbnail) and creates a video post. It
// returns once Reddit reports the result of processing the upload.
func (c *Client) SubmitVideo(ctx context.Context, post redpost.VideoPost) (*redpost.Submission, error) {
	videoURL, err := c.uploadMedia(ctx, post.VideoPath, "video/")
	if err != nil {
		return nil, err
	}

	form := submitForm(post.Subreddit, post.Title, post.FlairID)
	form.Set("kind", "video")
	if post.Options.VideoGIF != nil && *post.Options.VideoGIF {
		form.Set("kind", "videogif")
	}
	form.Set("url", videoURL)
	if post.ThumbnailPath != "" {
		posterURL, err := c.uploadMedia(ctx, post.ThumbnailPath, "image/")
		if err != nil {
			return nil, err
		}
		form.Set("video_poster_url", posterURL)
	}
	if post.Options.NSFW != nil {
		form.Set("nsfw", strconv.FormatBool(*post.Options.NSFW))
	}
	if post.Options.Spoiler != nil {
		form.Set("spoiler", strconv.FormatBool(*post.Options.Spoiler))
	}

	var data struct {
		UserSubmittedPage string `json:"user_submitted_page"`
		WebsocketURL      string `json:"websocket_url"`
	}
	if err := c.postJSON(ctx, "submit video post", "/api/submit", form, &data); err != nil {
		return nil, err
	}

	if data.WebsocketURL == "" {
		logutil.Warnf("no processing channel in submit response, post link unknown until processing finishes")
		return &redpost.Submission{URL: data.UserSubmittedPage, Permalink: data.UserSubmittedPage}, nil
	}
	return c.awaitProcessing(ctx, data.WebsocketURL)
}

type uploadLease struct {
	Args struct {
		Action string `json:"action"`
		Fields []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"fields"`
	} `json:"args"`
	Asset struct {
		AssetID string `json:"asset_id"`
	} `json:"asset"`
}

// uploadMedia leases an upload slot for path and returns the URL of the uploaded file.
func (c *Client) uploadMedia(ctx context.Context, path, wantPrefix string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", redpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("media %q not found", path)}
		}
		return "", fmt.Errorf("detect media type: %w", err)
	}
	mime, _, _ := strings.Cut(mtype.String(), ";")
	if !strings.HasPrefix(mime, wantPrefix) {
		return "", redpost.ValidationError{Provider: providerName, Reason: fmt.Sprintf("%q is %s, expected %s*", path, mime, wantPrefix)}
	}

	var lease uploadLease
	form := url.Values{
		"filepath": {filepath.Base(path)},
		"mimetype": {mime},
	}
	if err := c.postForm(ctx, "lease upload", "/api/media/asset.json", form, &lease); err != nil {
		return "", err
	}

	action := lease.Args.Action
	if strings.HasPrefix(action, "//") {
		action = "https:" + action
	}
	if action == "" {
		return "", &redpost.APIError{Op: "lease upload", Reason: "lease has no upload URL"}
	}

	fields := make(map[string]string, len(lease.Args.Fields))
	for _, f := range lease.Args.Fields {
		fields[f.Name] = f.Value
	}

	logutil.Debugf("uploading media: path=%s mimetype=%s asset=%s", path, mime, lease.Asset.AssetID)
	if err := c.upload(ctx, action, lease, path); err != nil {
		return "", err
	}
	return action + "/" + fields["key"], nil
}

// upload streams path to the lease action as a multipart form. The file is
// not buffered; the form framing is built up front so the length is known.
func (c *Client) upload(ctx context.Context, action string, lease uploadLease, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat media: %w", err)
	}

	var head bytes.Buffer
	mw := multipart.NewWriter(&head)
	for _, f := range lease.Args.Fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return fmt.Errorf("build upload: %w", err)
		}
	}
	if _, err := mw.CreateFormFile("file", filepath.Base(path)); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	headLen := head.Len()
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	tail := bytes.Clone(head.Bytes()[headLen:])
	head.Truncate(headLen)

	body := io.MultiReader(&head, file, bytes.NewReader(tail))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, body)
	if err != nil {
		return &redpost.APIError{Op: "upload media", Err: err}
	}
	req.ContentLength = int64(head.Len()+len(tail)) + info.Size()
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return &redpost.APIError{Op: "upload media", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return &redpost.APIError{Op: "upload media", StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode), Body: string(msg)}
	}
	return nil
}

type processingUpdate struct {
	Type    string `json:"type"`
	Payload struct {
		Redirect string `json:"redirect"`
		Message  string `json:"message"`
	} `json:"payload"`
}

// awaitProcessing reads the first update from Reddit's media processing socket.
func (c *Client) awaitProcessing(ctx context.Context, wsURL string) (*redpost.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, processingTimeout)
	defer cancel()

	header := http.Header{"User-Agent": {c.userAgent}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		apiErr := &redpost.APIError{Op: "await video processing", Err: err}
		if resp != nil {
			apiErr.StatusCode = resp.StatusCode
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			resp.Body.Close()
			apiErr.Body = string(body)
		}
		return nil, apiErr
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	logutil.Debugf("waiting for video processing")
	var update processingUpdate
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, &redpost.APIError{Op: "await video processing", Err: err}
	}
	if err := json.Unmarshal(msg, &update); err != nil {
		return nil, &redpost.APIError{Op: "await video processing", Reason: "decode update", Err: err, Body: string(msg)}
	}

	switch update.Type {
	case "success":
	case "failed":
		reason := "media processing failed"
		if update.Payload.Message != "" {
			reason += ": " + update.Payload.Message
		}
		return nil, &redpost.APIError{Op: "await video processing", Reason: reason, Body: string(msg)}
	default:
		return nil, &redpost.APIError{Op: "await video processing", Reason: fmt.Sprintf("unexpected update %q", update.Type), Body: string(msg)}
	}

	sub := &redpost.Submission{URL: update.Payload.Redirect, Permalink: update.Payload.Redirect}
	if m := commentsIDRe.FindStringSubmatch(update.Payload.Redirect); m != nil {
		sub.ID = m[1]
		sub.Name = "t3_" + m[1]
	}
	return sub, nil
}
