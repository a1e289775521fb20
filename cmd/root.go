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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blacktop/postkit/internal/config"
	"github.com/blacktop/postkit/internal/content"
	"github.com/blacktop/postkit/internal/logutil"
	"github.com/blacktop/postkit/internal/publish"
	"github.com/blacktop/postkit/internal/publish/bluesky"
	"github.com/blacktop/postkit/internal/publish/mastodon"
	"github.com/blacktop/postkit/internal/publish/substack"
	"github.com/blacktop/postkit/internal/publish/twitter"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath  string
	imagePath   string
	videoPath   string
	mediaAlt    string
	targetsFlag []string
	dryRun      bool
	noNumber    bool
	verbose     bool
)

const defaultAltText = "Image attached via postkit"

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postkit [content.md]",
		Short: "Publish one document everywhere",
		Long: "postkit adapts a single markdown document to every configured platform: " +
			"threaded posts for Bluesky, Mastodon, and X, and a long-form email for Substack. " +
			"Provide the document as a file argument or on stdin.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
		Example: `  postkit post.md --image ./cover.png
  postkit post.md --target bluesky --target substack
  cat post.md | postkit --dry-run`,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "Path to the config file")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to an image to attach")
	cmd.Flags().StringVar(&videoPath, "video", "", "Path to a video to attach")
	cmd.Flags().StringVar(&mediaAlt, "alt-text", "", "Alternative text to describe the media")
	cmd.Flags().StringSliceVar(&targetsFlag, "target", nil, "Targets to publish to (default: all configured)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the per-target output without publishing")
	cmd.Flags().BoolVar(&noNumber, "no-number", false, "Skip (i/n) markers on thread units")
	cmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "Enable verbose logging")
	cmd.Flags().SortFlags = false

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logutil.SetVerbose(verbose)

	// Optional .env next to the config; real env always wins.
	if err := godotenv.Load(); err == nil {
		logutil.Debugf("loaded .env")
	}

	doc, err := resolveDocument(cmd, args)
	if err != nil {
		return err
	}
	attachMedia(&doc)
	if strings.TrimSpace(doc.Body) == "" {
		logutil.Infof("document body is empty; publishing anyway")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	targets, err := selectTargets(cfg.Targets(), targetsFlag)
	if err != nil {
		return err
	}

	orch := publish.NewOrchestrator(map[string]publish.Constructor{
		"bluesky":  bluesky.New,
		"mastodon": mastodon.New,
		"twitter":  twitter.New,
		"substack": substack.New,
	}, publish.Options{NumberUnits: !noNumber})

	report := orch.Publish(ctx, doc, targets, dryRun)
	printReport(cmd.OutOrStdout(), report, dryRun)

	if !report.OK() {
		return errors.New("one or more targets failed")
	}
	return nil
}

func resolveDocument(cmd *cobra.Command, args []string) (publish.Document, error) {
	if len(args) > 0 {
		return content.ParseFile(args[0])
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok {
		if term.IsTerminal(int(file.Fd())) {
			return publish.Document{}, errors.New("provide a content file or pipe markdown on stdin")
		}
	}

	return content.Parse(stdin)
}

func attachMedia(doc *publish.Document) {
	alt := strings.TrimSpace(mediaAlt)
	if alt == "" && imagePath != "" {
		alt = defaultAltText
	}
	if imagePath != "" {
		doc.Media = append(doc.Media, publish.MediaRef{Kind: publish.MediaImage, Path: imagePath, Alt: alt})
	}
	if videoPath != "" {
		doc.Media = append(doc.Media, publish.MediaRef{Kind: publish.MediaVideo, Path: videoPath, Alt: strings.TrimSpace(mediaAlt)})
	}
}

// selectTargets filters configured targets by the --target flag while
// preserving configuration order. "all" selects everything.
func selectTargets(configured []publish.Target, requested []string) ([]publish.Target, error) {
	if len(configured) == 0 {
		return nil, errors.New("no targets configured; run `postkit init` to create a starter config")
	}
	if len(requested) == 0 {
		return configured, nil
	}

	wanted := map[string]bool{}
	for _, raw := range requested {
		name := strings.TrimSpace(strings.ToLower(raw))
		if name == "" {
			continue
		}
		if name == "all" {
			return configured, nil
		}
		wanted[name] = false
	}

	var selected []publish.Target
	for _, target := range configured {
		if _, ok := wanted[target.Name]; ok {
			wanted[target.Name] = true
			selected = append(selected, target)
		}
	}

	for name, found := range wanted {
		if !found {
			return nil, fmt.Errorf("target %q is not configured", name)
		}
	}
	if len(selected) == 0 {
		return nil, errors.New("no targets selected")
	}
	return selected, nil
}

func printReport(out io.Writer, report publish.Report, dryRun bool) {
	for _, res := range report {
		switch res.Status {
		case publish.StatusDryRun:
			fmt.Fprintf(out, "[dry-run] %s (%d unit(s)):\n%s\n", res.Target, res.Units, res.Detail)
		case publish.StatusSuccess:
			fmt.Fprintf(out, "published to %s (%d unit(s))\n", res.Target, res.Units)
		case publish.StatusFailure:
			fmt.Fprintf(out, "failed: %s: %s\n", res.Target, res.Detail)
		}
	}

	if dryRun {
		return
	}
	success := 0
	for _, res := range report {
		if res.Status == publish.StatusSuccess {
			success++
		}
	}
	fmt.Fprintf(out, "%d/%d target(s) succeeded\n", success, len(report))
}
