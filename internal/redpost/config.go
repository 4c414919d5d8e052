package redpost

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Raw is a parsed but unvalidated post configuration. Values are kept as
// nodes so scalars keep the text they were written with.
type Raw map[string]yaml.Node

var requiredFields = []string{"type", "title", "subreddit"}

// Load reads and parses the YAML configuration at path.
func Load(path string) (Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Path: path, Reason: "file not found"}
		}
		return nil, &ConfigError{Path: path, Reason: "read file", Err: err}
	}
	raw, err := Parse(data)
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			cerr.Path = path
		}
		return nil, err
	}
	return raw, nil
}

// Parse decodes a YAML document into a Raw mapping.
func Parse(data []byte) (Raw, error) {
	var raw Raw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Reason: "parse YAML", Err: err}
	}
	if raw == nil {
		return nil, &ConfigError{Reason: "configuration is empty"}
	}
	return raw, nil
}

// Validate checks raw and returns the typed configuration. It stops at the first problem.
func Validate(raw Raw) (*PostConfig, error) {
	for _, field := range requiredFields {
		if raw.lookup(field) == nil {
			return nil, &ConfigError{Field: field, Reason: "missing required field"}
		}
	}

	typ, err := stringField(raw, "type")
	if err != nil {
		return nil, err
	}
	if !supportedType(PostType(typ)) {
		return nil, &ConfigError{
			Field:  "type",
			Reason: fmt.Sprintf("unsupported post type '%s' (supported types: %s)", typ, supportedList()),
		}
	}
	if PostType(typ) == PostVideo {
		if raw.lookup("video_path") == nil {
			return nil, &ConfigError{Field: "video_path", Reason: "missing required field for video post"}
		}
	}

	cfg := &PostConfig{Type: PostType(typ)}
	strs := []struct {
		key string
		dst *string
	}{
		{"title", &cfg.Title},
		{"subreddit", &cfg.Subreddit},
		{"body", &cfg.Body},
		{"video_path", &cfg.VideoPath},
		{"thumbnail_path", &cfg.ThumbnailPath},
		{"flair", &cfg.Flair},
		{"follow_up_comment", &cfg.FollowUpComment},
	}
	for _, s := range strs {
		if *s.dst, err = stringField(raw, s.key); err != nil {
			return nil, err
		}
	}
	bools := []struct {
		key string
		dst **bool
	}{
		{"nsfw", &cfg.Options.NSFW},
		{"spoiler", &cfg.Options.Spoiler},
		{"videogif", &cfg.Options.VideoGIF},
	}
	for _, b := range bools {
		if *b.dst, err = boolField(raw, b.key); err != nil {
			return nil, err
		}
	}

	cfg.Subreddit = strings.TrimPrefix(strings.TrimSpace(cfg.Subreddit), "r/")
	if strings.TrimSpace(cfg.Title) == "" {
		return nil, &ConfigError{Field: "title", Reason: "must not be empty"}
	}
	if cfg.Subreddit == "" {
		return nil, &ConfigError{Field: "subreddit", Reason: "must not be empty"}
	}
	if cfg.Type == PostVideo && strings.TrimSpace(cfg.VideoPath) == "" {
		return nil, &ConfigError{Field: "video_path", Reason: "must not be empty"}
	}

	return cfg, nil
}

// lookup returns the node at key with aliases followed, or nil when the key
// is absent or null.
func (r Raw) lookup(key string) *yaml.Node {
	n, ok := r[key]
	if !ok {
		return nil
	}
	node := &n
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return nil
	}
	return node
}

// stringField returns the scalar at key as written, or "" when absent.
func stringField(raw Raw, key string) (string, error) {
	n := raw.lookup(key)
	if n == nil {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", &ConfigError{Field: key, Reason: fmt.Sprintf("must be a string, got %s", kindName(n.Kind))}
	}
	return n.Value, nil
}

// boolField returns nil when key is absent so the platform default applies.
func boolField(raw Raw, key string) (*bool, error) {
	n := raw.lookup(key)
	if n == nil {
		return nil, nil
	}
	var b bool
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!bool" || n.Decode(&b) != nil {
		return nil, &ConfigError{Field: key, Reason: fmt.Sprintf("must be true or false, got %s", describeNode(n))}
	}
	return &b, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "a list"
	case yaml.MappingNode:
		return "a mapping"
	}
	return "a non-scalar value"
}

func describeNode(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	return kindName(n.Kind)
}

func supportedType(t PostType) bool {
	for _, s := range SupportedTypes {
		if s == t {
			return true
		}
	}
	return false
}

func supportedList() string {
	names := make([]string, 0, len(SupportedTypes))
	for _, s := range SupportedTypes {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// ExampleConfig returns a commented example configuration.
func ExampleConfig() string {
	return exampleConfig
}

const exampleConfig = `# Example redpost configuration

####################
# TEXT POST EXAMPLE
####################

# Required fields
type: text                          # Post type (options: text, video)
title: Your post title here         # Title of your Reddit post
subreddit: nameofsubreddit          # Subreddit to post to (without the r/)

# Optional fields
body: |
  This is the main content of your post.

  You can include multiple paragraphs.

  * Markdown formatting is supported
  * Like bullet points
  * And more

# Optional flair (use --flairs SUBREDDIT to see available flairs)
# flair: Discussion

# Optional comment posted as a reply 30 seconds after the post goes up
# follow_up_comment: |
#   Source and extra details in this comment.

####################
# VIDEO POST EXAMPLE (uncomment to use)
####################

# type: video
# title: Your video post title
# subreddit: nameofsubreddit
# video_path: /path/to/your/video.mp4

# Optional video parameters (omit a flag to keep the subreddit default)
# thumbnail_path: /path/to/thumbnail.jpg   # generated from the first frame with ffmpeg when omitted
# videogif: false                   # Set to true for silent video/gif
# nsfw: false                       # Set to true for NSFW content
# spoiler: false                    # Set to true to mark as spoiler
# flair: Video                      # Optional flair
`
