package redpost

import (
	"context"
	"fmt"
	"io"
)

// ResolveFlair maps a flair label to its template ID. An empty label skips
// the lookup and returns "".
func ResolveFlair(ctx context.Context, client Client, subreddit, label string) (string, error) {
	if label == "" {
		return "", nil
	}

	options, err := client.LinkFlairs(ctx, subreddit)
	if err != nil {
		return "", fmt.Errorf("fetch flairs for r/%s: %w", subreddit, err)
	}

	for _, opt := range options {
		if opt.Text != label {
			continue
		}
		if opt.ID == "" {
			return "", &FlairError{Flair: label, Subreddit: subreddit, MissingID: true}
		}
		return opt.ID, nil
	}

	return "", &FlairError{Flair: label, Subreddit: subreddit}
}

// ListFlairs writes the selectable flairs of subreddit to out.
func ListFlairs(ctx context.Context, client Client, subreddit string, out io.Writer) error {
	options, err := client.LinkFlairs(ctx, subreddit)
	if err != nil {
		return fmt.Errorf("fetch flairs for r/%s: %w", subreddit, err)
	}

	if len(options) == 0 {
		fmt.Fprintf(out, "No available flairs found for r/%s.\n", subreddit)
		return nil
	}

	fmt.Fprintf(out, "Available flairs for r/%s:\n", subreddit)
	for _, opt := range options {
		text, id := opt.Text, opt.ID
		if text == "" {
			text = "N/A"
		}
		if id == "" {
			id = "N/A"
		}
		fmt.Fprintf(out, " - %s (ID: %s, Editable: %t)\n", text, id, opt.TextEditable)
	}
	return nil
}
