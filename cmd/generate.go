package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/statusdoc/statusdoc/internal/ai"
	"github.com/statusdoc/statusdoc/internal/config"
	"github.com/statusdoc/statusdoc/internal/daterange"
	"github.com/statusdoc/statusdoc/internal/format"
	"github.com/statusdoc/statusdoc/internal/gdocs"
	"github.com/statusdoc/statusdoc/internal/source"
)

var (
	rangeSelector string
	fromDate      string
	toDate        string
	formatName    string
	configPath    string
	dryRun        bool
	verbose       bool
	quiet         bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a status report and append it to the configured document",
	Long: `Generate resolves the requested date range, fetches the window's commits
for the allowed contributors, summarizes them into three categories with a
generation model, and appends the rendered block to the Google Doc.

Re-running generate for the same window appends a second copy of the block;
schedule exactly one run per window.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	// Add flags
	generateCmd.Flags().StringVar(&rangeSelector, "range", "", `Date range selector: "last-week", "this-week", or a weekday pair like "friday-thursday"`)
	generateCmd.Flags().StringVar(&fromDate, "from-date", "", "Start date in YYYY-MM-DD format (used when --range is not set)")
	generateCmd.Flags().StringVar(&toDate, "to-date", "", "End date in YYYY-MM-DD format (used when --range is not set)")
	generateCmd.Flags().StringVar(&formatName, "format", "", `Report format: "table" or "bullet"`)
	generateCmd.Flags().StringVar(&configPath, "config", "", "Optional YAML config file for non-secret settings")
	generateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the rendered report instead of writing to the document")
	generateCmd.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose progress output")
	generateCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress all progress output")

	generateCmd.MarkFlagRequired("format")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.FromEnvAndFlags(configPath, verbose, quiet, dryRun)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Setup logging
	logger := setupLogger(cfg)

	kind, err := format.ParseKind(formatName)
	if err != nil {
		return err
	}

	// Resolve the report window
	resolver := daterange.NewResolver(cfg.Location)
	var window daterange.Window
	switch {
	case rangeSelector != "":
		window, err = resolver.Resolve(rangeSelector, time.Now())
	case fromDate != "" && toDate != "":
		window, err = resolver.ResolveDates(fromDate, toDate)
	default:
		return fmt.Errorf("specify a date range using --range or both --from-date and --to-date")
	}
	if err != nil {
		return fmt.Errorf("resolve range: %w", err)
	}

	logger.Info("Resolved report window",
		"start", window.Start.Format("2006-01-02"),
		"end", window.End.Format("2006-01-02"),
		"timezone", cfg.Timezone)

	// Fetch commits
	src := newSource(ctx, cfg, logger)
	filter := source.NewFilter(cfg.AllowedEmails, cfg.AllowedUsernames)

	logger.Info("Fetching commits...", "provider", cfg.Provider)
	commits, err := src.Commits(ctx, window, filter)
	if err != nil {
		return fmt.Errorf("fetch commits: %w", err)
	}
	logger.Info("Commits fetched", "count", len(commits))

	// Summarize. Zero commits is a valid outcome: the report is appended
	// with explicit "None" markers rather than silently skipped, so a
	// quiet week is distinguishable from a failed run.
	summarizer, err := ai.NewGeminiSummarizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	defer summarizer.Close()

	if len(commits) > 0 {
		logger.Info("Generating summary...")
	}
	summary, err := summarizer.Summarize(ctx, commits)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	// Render
	block := format.Render(summary, window, kind)

	if cfg.DryRun {
		fmt.Print(block.Markdown())
		logger.Info("Dry run complete, document not modified")
		return nil
	}

	// Append
	logger.Info("Writing to document...", "docID", cfg.GoogleDocID)
	appender, err := gdocs.NewAppender(ctx, cfg.GoogleCredentialsFile, cfg.GoogleDocID, logger)
	if err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	if err := appender.Append(ctx, block); err != nil {
		return fmt.Errorf("append report: %w", err)
	}

	logger.Info("Report appended successfully", "format", kind.String(), "period", block.Period)
	return nil
}

// newSource picks the commit source for the configured provider.
func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) source.Source {
	if cfg.Provider == config.ProviderGitHub {
		return source.NewGitHubSource(ctx, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token, logger)
	}
	return source.NewBitbucketSource(
		cfg.Bitbucket.Workspace,
		cfg.Bitbucket.RepoSlug,
		cfg.Bitbucket.Username,
		cfg.Bitbucket.AppPassword,
		logger)
}

// setupLogger creates a logger configured for progress output
func setupLogger(cfg *config.Config) *slog.Logger {
	if cfg.Quiet {
		// Discard all log output when quiet
		return slog.New(slog.NewTextHandler(os.NewFile(0, os.DevNull), &slog.HandlerOptions{
			Level: slog.LevelError + 1, // Higher than any log level to discard all
		}))
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	// Use stderr for progress so stdout stays clean for output
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time stamps for cleaner progress output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}
