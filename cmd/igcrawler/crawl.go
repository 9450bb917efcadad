package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"igcrawler/pkg/auth"
	"igcrawler/pkg/checkpoint"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/filter"
	"igcrawler/pkg/instagram"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/metrics"
	"igcrawler/pkg/scraper"
	"igcrawler/pkg/stamps"
	"igcrawler/pkg/ui"
)

var (
	// Crawl command flags
	outputDir      string
	concurrent     int
	loginUser      string
	parallel       int
	postFilter     string
	fastUpdate     bool
	latestStamps   string
	noResume       bool
	resumePrefix   string
	resumeBackend  string
	raiseAllErrors bool
	skipVideos     bool
	saveMetadata   bool
	noSleep        bool
	maxAttempts    int
	metricsAddr    string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <profile>...",
	Short: "Download the posts of one or more profiles",
	Long: `Download the posts of one or more profiles, newest first.

Each profile is crawled through a resumable iterator. Interrupting a crawl
with ^C stores the position, and the next run of the same profile continues
from there. Failures of single profiles are reported at the end; the
remaining profiles are still crawled unless --raise-all-errors is given.

Post filters are boolean expressions over the fields
  likes, comments, is_video, typename, taken_at, caption, shortcode, owner
for example 'likes > 100 && !is_video'.`,
	Example: `  # Download two profiles anonymously
  igcrawler crawl natgeo nasa

  # Use a stored session and crawl three profiles at a time
  igcrawler crawl --login myaccount --parallel 3 alice bob carol dave

  # Only fetch posts newer than the last run
  igcrawler crawl --fast-update --latest-stamps stamps.yaml natgeo

  # Keep resume snapshots in redis
  igcrawler crawl --resume-backend redis natgeo`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	crawlCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent media downloads")
	crawlCmd.Flags().StringVarP(&loginUser, "login", "l", "", "use the stored session of this account")
	crawlCmd.Flags().IntVar(&parallel, "parallel", 0, "number of profiles crawled at the same time")
	crawlCmd.Flags().StringVar(&postFilter, "post-filter", "", "only download posts matching this expression")
	crawlCmd.Flags().BoolVar(&fastUpdate, "fast-update", false, "stop at the first post that is already known")
	crawlCmd.Flags().StringVar(&latestStamps, "latest-stamps", "", "file recording the newest post of each profile")
	crawlCmd.Flags().BoolVar(&noResume, "no-resume", false, "do not load or save resume snapshots")
	crawlCmd.Flags().StringVar(&resumePrefix, "resume-prefix", "", "name prefix of resume snapshots")
	crawlCmd.Flags().StringVar(&resumeBackend, "resume-backend", "", "where resume snapshots are kept (file, redis)")
	crawlCmd.Flags().BoolVar(&raiseAllErrors, "raise-all-errors", false, "stop at the first failing profile")
	crawlCmd.Flags().BoolVar(&skipVideos, "skip-videos", false, "do not download videos")
	crawlCmd.Flags().BoolVar(&saveMetadata, "save-metadata", false, "write a {shortcode}.json file with the metadata of each post")
	crawlCmd.Flags().BoolVar(&noSleep, "no-sleep", false, "do not pause between requests")
	crawlCmd.Flags().IntVar(&maxAttempts, "max-connection-attempts", -1, "attempts per request before giving up (0 retries forever)")
	crawlCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
}

func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed
	if set("output") {
		flags["output"] = outputDir
	}
	if set("concurrent") {
		flags["concurrent"] = concurrent
	}
	if set("parallel") {
		flags["parallel"] = parallel
	}
	if set("post-filter") {
		flags["post-filter"] = postFilter
	}
	if set("max-connection-attempts") {
		flags["max-connection-attempts"] = maxAttempts
	}
	flags["fast-update"] = fastUpdate
	flags["latest-stamps"] = latestStamps
	flags["no-resume"] = noResume
	flags["resume-prefix"] = resumePrefix
	flags["resume-backend"] = resumeBackend
	flags["raise-all-errors"] = raiseAllErrors
	flags["skip-videos"] = skipVideos
	flags["save-metadata"] = saveMetadata
	flags["no-sleep"] = noSleep
	flags["metrics-addr"] = metricsAddr
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(crawlFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	f, err := filter.Compile(cfg.Crawl.PostFilter)
	if err != nil {
		return err
	}

	var account *auth.Account
	if loginUser != "" {
		account, err = retrieveAccount(loginUser)
		if err != nil {
			return err
		}
		if account.UserAgent != "" {
			cfg.Instagram.UserAgent = account.UserAgent
		}
	}

	ic := instagram.NewContext(instagram.Options{Config: cfg, Logger: log})
	defer ic.Close()

	if account != nil {
		if err := useSession(ctx, ic, account, log); err != nil {
			return err
		}
	}

	backend, err := checkpoint.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	var latest *stamps.LatestStamps
	if cfg.Crawl.LatestStampsFile != "" {
		if latest, err = stamps.Load(cfg.Crawl.LatestStampsFile); err != nil {
			return err
		}
	}

	s, err := scraper.New(scraper.Options{
		Context:   ic,
		Snapshots: backend,
		Stamps:    latest,
		Filter:    f,
		Progress:  ui.Default(),
		Logger:    log,
	})
	if err != nil {
		return err
	}

	summary, err := s.DownloadProfiles(ctx, args)
	if summary != nil {
		summary.Write(os.Stdout)
	}
	if err != nil {
		if errs.IsCancellation(err) {
			ui.PrintWarning("Interrupted, run the same command again to resume")
		}
		return err
	}
	if failed := summary.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d profiles failed: %s", len(failed), len(args), strings.Join(failed, ", "))
	}
	ui.PrintSuccess("Crawl completed")
	return nil
}

func retrieveAccount(username string) (*auth.Account, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	account, err := manager.Retrieve(username)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil, fmt.Errorf("no stored session for %s, run 'igcrawler auth login %s' first", username, username)
		}
		return nil, err
	}
	return account, nil
}

// useSession restores account into ic and checks that the provider still
// accepts it
func useSession(ctx context.Context, ic *instagram.Context, account *auth.Account, log logger.Logger) error {
	if err := ic.LoadSession(account.Username, account.Cookies); err != nil {
		return err
	}
	name, err := ic.TestLogin(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify session of %s: %w", account.Username, err)
	}
	if name == "" {
		return errs.New(errs.ErrorTypeAuthRequired, "session of %s expired, log in again", account.Username)
	}
	if name != account.Username {
		log.WithField("session_user", name).Warn("Stored session belongs to a different account")
	}
	ui.PrintInfo("Logged in as", name)
	return nil
}
