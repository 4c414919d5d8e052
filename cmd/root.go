/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/blacktop/redpost/internal/logutil"
	"github.com/blacktop/redpost/internal/redpost"
	"github.com/blacktop/redpost/internal/redpost/reddit"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	file       string
	flairs     string
	example    bool
	dryRun     bool
	verbose    bool
	ffmpegPath string
	envFile    string
}

// newClient builds the platform session; tests swap it for a fake.
var newClient = func(ctx context.Context) (redpost.Client, error) {
	return reddit.New(ctx)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "redpost",
		Short: "Submit a Reddit post described in a YAML file",
		Long: "redpost submits a text or video post to a subreddit from a YAML configuration, " +
			"applying an optional flair and posting an optional follow-up comment.\n\n" +
			"Credentials are read from REDDIT_USER, REDDIT_PASS, REDDIT_CLIENTID and REDDIT_CLIENTSEC " +
			"(a .env file in the working directory is loaded first).",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logutil.SetVerbose(opts.verbose)
			return loadEnvFile(opts.envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd.Context(), opts, cmd.OutOrStdout())
		},
		Example: `  redpost --example > post.yaml
  redpost --flairs golang
  redpost --file post.yaml
  redpost --file post.yaml --dry-run`,
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Path to the YAML post configuration")
	cmd.Flags().StringVar(&opts.flairs, "flairs", "", "List available flairs for `SUBREDDIT`")
	cmd.Flags().BoolVar(&opts.example, "example", false, "Print an example YAML configuration")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate the configuration and print the planned post without submitting")
	cmd.Flags().StringVar(&opts.ffmpegPath, "ffmpeg", "ffmpeg", "ffmpeg binary used to generate video thumbnails")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "V", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file with Reddit credentials")
	cmd.Flags().SortFlags = false

	cmd.MarkFlagsMutuallyExclusive("file", "flairs", "example")
	cmd.MarkFlagsOneRequired("file", "flairs", "example")
	cmd.MarkFlagFilename("file", "yaml", "yml")

	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func runRoot(ctx context.Context, opts *rootOptions, out io.Writer) error {
	switch {
	case opts.example:
		fmt.Fprint(out, redpost.ExampleConfig())
		return nil
	case opts.flairs != "":
		subreddit := strings.TrimPrefix(strings.TrimSpace(opts.flairs), "r/")
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		return redpost.ListFlairs(ctx, client, subreddit, out)
	default:
		return submit(ctx, opts, out)
	}
}

func submit(ctx context.Context, opts *rootOptions, out io.Writer) error {
	raw, err := redpost.Load(opts.file)
	if err != nil {
		return err
	}
	cfg, err := redpost.Validate(raw)
	if err != nil {
		return err
	}

	if opts.dryRun {
		if err := redpost.Preflight(cfg); err != nil {
			return err
		}
		describe(out, cfg)
		return nil
	}

	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	wf := &redpost.Workflow{
		Client:    client,
		Extractor: redpost.FFmpeg{Path: opts.ffmpegPath},
		Out:       out,
	}
	res, err := wf.Run(ctx, cfg)
	if err != nil {
		return err
	}
	logutil.Debugf("run finished: state=%s", res.State)
	return nil
}

func describe(out io.Writer, cfg *redpost.PostConfig) {
	fmt.Fprintf(out, "[dry-run] would submit %s post to r/%s: %q\n", cfg.Type, cfg.Subreddit, cfg.Title)
	if cfg.Type == redpost.PostVideo {
		fmt.Fprintf(out, "[dry-run] video: %s\n", cfg.VideoPath)
		if cfg.ThumbnailPath != "" {
			fmt.Fprintf(out, "[dry-run] thumbnail: %s\n", cfg.ThumbnailPath)
		} else {
			fmt.Fprintln(out, "[dry-run] thumbnail: generated from first frame")
		}
		for _, flag := range []struct {
			name string
			val  *bool
		}{
			{"nsfw", cfg.Options.NSFW},
			{"spoiler", cfg.Options.Spoiler},
			{"videogif", cfg.Options.VideoGIF},
		} {
			if flag.val != nil {
				fmt.Fprintf(out, "[dry-run] %s: %t\n", flag.name, *flag.val)
			}
		}
	}
	if cfg.Flair != "" {
		fmt.Fprintf(out, "[dry-run] flair: %s\n", cfg.Flair)
	}
	if cfg.HasFollowUp() {
		fmt.Fprintf(out, "[dry-run] follow-up comment after %s\n", redpost.DefaultFollowUpDelay)
	}
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
