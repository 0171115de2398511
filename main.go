package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	debugMode      bool
	settingsPath   string
	promptPath     string
	sourceName     string
	selectAll      bool
	keepStaging    bool
	noPublish      bool
	skipMigrated   bool
	offlineMode    bool
	publishMessage string
	historyLimit   int
)

var rootCmd = &cobra.Command{
	Use:   "tistory2git",
	Short: "Back up Tistory posts into a Jekyll repository",
	Long: `Lists posts from a Tistory blog (public feed or the admin console),
converts the selected ones to Jekyll Markdown and publishes them to a
backup branch with a pull request into main.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		SetDebugMode(debugMode)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts with their selection numbers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg := loadConfig()
		if err := cfg.Validate(sourceName, false); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}

		session, err := openSource(ctx, cfg, sourceName)
		if err != nil {
			log.Fatalf("Opening source failed: %v", err)
		}
		defer session.Close()

		posts, err := session.reader.List(ctx)
		if err != nil {
			log.Fatalf("Listing posts failed: %v", err)
		}
		printPosts(os.Stdout, posts)
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [numbers...]",
	Short: "Convert the selected posts and publish them",
	Long: `Converts the selected posts to Markdown in the staging area and publishes
them. Numbers come from "list"; they may be separated by spaces or commas.
Without numbers and without --all the numbers are read from stdin.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg := loadConfig()
		if offlineMode {
			cfg.Settings.Completion.Provider = ProviderLocal
		}
		if err := cfg.Validate(sourceName, !noPublish); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}

		session, err := openSource(ctx, cfg, sourceName)
		if err != nil {
			log.Fatalf("Opening source failed: %v", err)
		}
		defer session.Close()

		posts, err := session.reader.List(ctx)
		if err != nil {
			log.Fatalf("Listing posts failed: %v", err)
		}
		if len(posts) == 0 {
			log.Fatal("No posts found")
		}

		selected, err := choosePosts(posts, args)
		if err != nil {
			log.Fatalf("Selection failed: %v", err)
		}

		processor, closeProcessor, err := buildProcessor(cfg, session.fetcher)
		if err != nil {
			log.Fatalf("Failed to create processor: %v", err)
		}
		defer closeProcessor()

		report, err := processor.Run(ctx, selected)
		if report != nil {
			printReport(os.Stdout, report)
		}
		if err != nil {
			log.Fatalf("Backup stopped: %v", err)
		}
		if report.PublishError != nil {
			os.Exit(1)
		}
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the current staging area without converting anything",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg := loadConfig()
		if err := cfg.ValidatePublish(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}

		publisher, err := buildPublisher(cfg, NewStaging(cfg.Settings.StagingDirectory))
		if err != nil {
			log.Fatalf("Failed to create publisher: %v", err)
		}
		result, err := publisher.Publish(ctx, publishMessage)
		if err != nil {
			log.Fatalf("Publish failed: %v", err)
		}
		printPublishResult(os.Stdout, result)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show posts recorded by earlier runs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ledger, err := OpenLedger(cfg.Settings.HistoryPath)
		if err != nil {
			log.Fatalf("Opening history failed: %v", err)
		}
		defer ledger.Close()

		entries, err := ledger.Recent(context.Background(), historyLimit)
		if err != nil {
			log.Fatalf("Reading history failed: %v", err)
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-7s  %s  %s", e.RecordedAt.Local().Format(time.DateTime), e.Status, e.Date, e.Title)
			if e.Filename != "" {
				line += "  → " + e.Filename
			}
			if e.Error != "" {
				line += "  (" + e.Error + ")"
			}
			fmt.Println(line)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to a settings.yaml file")
	rootCmd.PersistentFlags().StringVar(&promptPath, "prompt", "", "Path to a custom markdown system prompt")

	for _, cmd := range []*cobra.Command{listCmd, backupCmd} {
		cmd.Flags().StringVar(&sourceName, "source", SourceFeed, "Where to list posts from: feed or admin")
	}

	backupCmd.Flags().BoolVar(&selectAll, "all", false, "Back up every listed post")
	backupCmd.Flags().BoolVar(&keepStaging, "keep-staging", false, "Add to the staging area instead of clearing it")
	backupCmd.Flags().BoolVar(&noPublish, "no-publish", false, "Stage only, do not push to GitHub")
	backupCmd.Flags().BoolVar(&skipMigrated, "skip-migrated", false, "Skip posts already migrated by an earlier run")
	backupCmd.Flags().BoolVar(&offlineMode, "offline", false, "Convert locally without a completion service")

	publishCmd.Flags().StringVar(&publishMessage, "message", "Update posts", "Commit message")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of entries to show")

	rootCmd.AddCommand(listCmd, backupCmd, publishCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() *Config {
	overrides := &ConfigOverrides{}
	if settingsPath != "" {
		overrides.SettingsPath = &settingsPath
	}
	if promptPath != "" {
		overrides.PromptPath = &promptPath
	}
	cfg, err := NewConfig(overrides)
	if err != nil {
		log.Fatalf("Loading configuration failed: %v", err)
	}
	return cfg
}

// sourceSession is a post source together with the fetcher that can open its posts
type sourceSession struct {
	reader  SourceReader
	fetcher PageFetcher
	close   func()
}

func (s *sourceSession) Close() {
	if s.close != nil {
		s.close()
	}
}

func openSource(ctx context.Context, cfg *Config, source string) (*sourceSession, error) {
	switch source {
	case SourceFeed:
		return &sourceSession{
			reader:  NewFeedReader(cfg.Credentials.FeedURL),
			fetcher: NewHTTPFetcher(30 * time.Second),
		}, nil
	case SourceAdmin:
		browser, err := NewChromeBrowser(cfg.Settings.Browser)
		if err != nil {
			return nil, err
		}
		if err := browser.Login(ctx, cfg.Credentials.LoginID, cfg.Credentials.LoginPassword); err != nil {
			browser.Close()
			return nil, err
		}
		return &sourceSession{
			reader:  NewAdminReader(browser, cfg.Credentials.BlogName, cfg.Settings.Browser),
			fetcher: NewBrowserFetcher(browser, cfg.Settings.Browser),
			close:   browser.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

func buildPublisher(cfg *Config, staging *Staging) (*Publisher, error) {
	repo, err := NewGitHubRepository(cfg.Credentials.GitHubToken, cfg.Credentials.GitHubRepo)
	if err != nil {
		return nil, err
	}
	return NewPublisher(repo, staging, cfg.Settings.GitHub), nil
}

func buildProcessor(cfg *Config, fetcher PageFetcher) (*Processor, func(), error) {
	completer, err := NewCompleter(cfg)
	if err != nil {
		return nil, nil, err
	}
	transformer, err := NewTransformer(completer, cfg.GetMarkdownPrompt(), cfg.Settings.Transform.Repair)
	if err != nil {
		return nil, nil, err
	}
	slugger := NewSlugger(completer, cfg.GetSlugPrompt())
	staging := NewStaging(cfg.Settings.StagingDirectory)

	var publisher *Publisher
	if !noPublish {
		publisher, err = buildPublisher(cfg, staging)
		if err != nil {
			return nil, nil, err
		}
	}

	ledger, err := OpenLedger(cfg.Settings.HistoryPath)
	if err != nil {
		log.Printf("Warning: history disabled: %v", err)
	}
	closeFn := func() {
		if ledger != nil {
			ledger.Close()
		}
	}

	processor := NewProcessor(NewExtractor(fetcher, cfg.Settings.Extract), transformer, slugger,
		staging, publisher, ledger, ProcessorOptions{KeepStaging: keepStaging, SkipMigrated: skipMigrated})
	return processor, closeFn, nil
}

func choosePosts(posts []PostSummary, args []string) ([]PostSummary, error) {
	if selectAll {
		return posts, nil
	}

	input := strings.Join(args, ",")
	if strings.TrimSpace(input) == "" {
		printPosts(os.Stdout, posts)
		fmt.Print("Numbers (comma separated): ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading selection: %w", err)
		}
		input = line
	}

	indices, err := parseSelection(input, len(posts))
	if err != nil {
		return nil, err
	}
	selected := make([]PostSummary, 0, len(indices))
	for _, i := range indices {
		selected = append(selected, posts[i])
	}
	return selected, nil
}

// parseSelection reads comma or space separated post numbers in [0, n).
// Duplicates are dropped and the input order is kept.
func parseSelection(input string, n int) ([]int, error) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no posts selected")
	}

	seen := map[int]bool{}
	var indices []int
	for _, field := range fields {
		i, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%q is not a post number", field)
		}
		if i < 0 || i >= n {
			return nil, fmt.Errorf("post number %d out of range 0-%d", i, n-1)
		}
		if !seen[i] {
			seen[i] = true
			indices = append(indices, i)
		}
	}
	return indices, nil
}

func printPosts(w io.Writer, posts []PostSummary) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for i, p := range posts {
		status := ""
		if p.Status != "" && p.Status != StatusPublic {
			status = fmt.Sprintf(" (%s)", p.Status)
		}
		fmt.Fprintf(w, "[%d] %s %s%s\n", i, p.Date, p.Title, status)
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
}

func printReport(w io.Writer, report *BatchReport) {
	fmt.Fprintf(w, "\nRun %s: %s\n", report.RunID, report)
	for _, r := range report.Failed() {
		fmt.Fprintf(w, "  ✗ %s: %v\n", r.Post.Title, r.Error)
	}
	if report.Publish != nil {
		printPublishResult(w, report.Publish)
	}
	if report.PublishError != nil {
		fmt.Fprintf(w, "  ✗ publish: %v\n", report.PublishError)
	}
}

func printPublishResult(w io.Writer, result *PublishResult) {
	fmt.Fprintf(w, "Created %d, updated %d, failed %d\n", len(result.Created), len(result.Updated), len(result.Failed))
	for path, err := range result.Failed {
		fmt.Fprintf(w, "  ✗ %s: %v\n", path, err)
	}
	if result.PullRequestURL != "" {
		fmt.Fprintf(w, "Pull request: %s\n", result.PullRequestURL)
	}
}
