package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Sternrassler/vktop/internal/config"
	"github.com/Sternrassler/vktop/internal/pageid"
	"github.com/Sternrassler/vktop/internal/render"
	"github.com/Sternrassler/vktop/pkg/logging"
	"github.com/Sternrassler/vktop/pkg/metrics"
	"github.com/Sternrassler/vktop/pkg/pagination"
	"github.com/Sternrassler/vktop/pkg/ratelimit"
	"github.com/Sternrassler/vktop/pkg/vkapi"
	"github.com/Sternrassler/vktop/pkg/wall"
)

// options holds the parsed command line.
type options struct {
	configFile  string
	likes       bool
	reposts     bool
	top         int
	workers     int
	days        int
	from        string
	to          string
	format      string
	accessToken string
	logLevel    string
	prettyLogs  bool
	metricsAddr string
	redisAddr   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "vktop [flags] <page-url>",
		Short: "Show the most liked or reposted posts of a VK wall",
		Long: `vktop downloads every post of a public VK page in parallel, ranks them by
likes or reposts and prints the top of the list.

The page may be given as https://vk.com/<screen_name>, vk.com/club<N>,
public<N>, event<N> or id<N>.`,
		Example: `  vktop https://vk.com/apiclub
  vktop -r -t 20 --days 30 vk.com/club1
  vktop --from 2024-01-01 --to 2024-03-31 --format json durov`,
		Version:       versionString(),
		Args:          exactlyOnePage,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(cmd); err != nil {
				return err
			}
			ref, err := pageid.Parse(args[0])
			if err != nil {
				return &usageError{err: err}
			}
			dr, err := opts.dateRange(cmd.Flags().Changed("days"), time.Now())
			if err != nil {
				return &usageError{err: err}
			}
			return runTop(cmd.Context(), opts, ref, dr, stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	cmd.SetVersionTemplate("vktop {{.Version}}\n")
	cmd.CompletionOptions.DisableDefaultCmd = true

	f := cmd.Flags()
	f.BoolVarP(&opts.likes, "likes", "l", false, "rank by likes (default)")
	f.BoolVarP(&opts.reposts, "reposts", "r", false, "rank by reposts")
	f.IntVarP(&opts.top, "top", "t", 10, "number of posts to show")
	f.IntVarP(&opts.workers, "workers", "w", 0, "number of concurrent workers (default: number of CPU cores)")
	f.IntVarP(&opts.days, "days", "d", 0, "only posts published in the last N days")
	f.StringVar(&opts.from, "from", "", "only posts published on or after this day (YYYY-MM-DD)")
	f.StringVar(&opts.to, "to", "", "only posts published on or before this day (YYYY-MM-DD)")
	f.StringVar(&opts.format, "format", string(render.FormatTable), "output format: table or json")
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (default is ./.vktop.yaml or ~/.config/vktop/config.yaml)")
	f.StringVar(&opts.accessToken, "access-token", "", "VK API access token (prefer "+config.EnvAccessToken+")")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	f.BoolVar(&opts.prettyLogs, "pretty-logs", false, "human readable logs on stderr")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "share rate-limit cooldowns through this Redis instance")

	cmd.AddCommand(newVersionCmd(stdout))
	return cmd
}

func exactlyOnePage(_ *cobra.Command, args []string) error {
	switch len(args) {
	case 1:
		return nil
	case 0:
		return usagef("missing page url")
	default:
		return usagef("expected one page url, got %d arguments", len(args))
	}
}

func (o *options) validate(cmd *cobra.Command) error {
	if o.likes && o.reposts {
		return usagef("--likes and --reposts are mutually exclusive")
	}
	if o.top <= 0 {
		return usagef("--top must be a positive number (got %d)", o.top)
	}
	if cmd.Flags().Changed("workers") && o.workers <= 0 {
		return usagef("--workers must be a positive number (got %d)", o.workers)
	}
	if cmd.Flags().Changed("days") {
		if o.days < 0 {
			return usagef("--days must not be negative (got %d)", o.days)
		}
		if o.from != "" {
			return usagef("--days and --from are mutually exclusive")
		}
	}
	if _, err := render.ParseFormat(o.format); err != nil {
		return &usageError{err: err}
	}
	return nil
}

func (o *options) metric() wall.Metric {
	if o.reposts {
		return wall.MetricReposts
	}
	return wall.MetricLikes
}

func (o *options) dateRange(lastDays bool, now time.Time) (wall.DateRange, error) {
	if lastDays {
		dr, err := wall.LastDays(o.days, now)
		if err != nil {
			return wall.DateRange{}, err
		}
		if o.to != "" {
			upper, err := wall.ParseDateRange("", o.to, now.Location())
			if err != nil {
				return wall.DateRange{}, err
			}
			return wall.NewDateRange(dr.From, upper.To)
		}
		return dr, nil
	}
	return wall.ParseDateRange(o.from, o.to, now.Location())
}

func runTop(ctx context.Context, opts *options, page pageid.Ref, dr wall.DateRange, stdout, stderr io.Writer) error {
	start := time.Now()

	cfg, err := config.Load(opts.configFile, config.Overrides{
		AccessToken: opts.accessToken,
		Workers:     opts.workers,
		LogLevel:    opts.logLevel,
		PrettyLogs:  opts.prettyLogs,
		MetricsAddr: opts.metricsAddr,
		RedisAddr:   opts.redisAddr,
	})
	if err != nil {
		return err
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = stderr
	logger := logging.Setup(logCfg).With().Str("run_id", uuid.NewString()).Logger()

	format, _ := render.ParseFormat(opts.format)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr, logger)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		go func() {
			if err := srv.Serve(runCtx); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	gate, closeGate := newGate(runCtx, cfg, logger)
	defer closeGate()

	clientCfg := cfg.ClientConfig()
	clientCfg.Gate = gate
	client, err := vkapi.New(clientCfg, logging.NewLogger(logger, "vkapi"))
	if err != nil {
		return err
	}
	defer client.Close()

	ownerID, err := pageid.OwnerID(runCtx, client, page)
	if err != nil {
		return err
	}

	logger.Info().
		Stringer("page", page).
		Int64("owner_id", ownerID).
		Str("metric", string(opts.metric())).
		Int("top", opts.top).
		Stringer("date_range", dr).
		Msg("Starting wall fetch")

	if format == render.FormatTable {
		fmt.Fprintln(stderr, "Downloading posts. This may take some time, be patient...")
	}

	fetcher := pagination.NewBatchFetcher(client, cfg.PaginationConfig(), logger)
	posts, err := fetcher.FetchAll(runCtx, ownerID, dr)
	if err != nil {
		return err
	}

	top := wall.RankTop(posts, opts.metric(), opts.top)

	if err := render.Write(stdout, top, render.Options{
		Format:    format,
		Metric:    opts.metric(),
		TextWidth: textWidth(stdout),
	}); err != nil {
		return err
	}
	if format == render.FormatTable {
		return render.Elapsed(stdout, time.Since(start))
	}
	return nil
}

// newGate returns the Redis backed cooldown tracker when Redis is configured
// and reachable, otherwise an in-process gate.
func newGate(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ratelimit.Gate, func()) {
	gateLogger := logging.NewLogger(logger, "ratelimit")
	local := func() (ratelimit.Gate, func()) {
		return ratelimit.NewLocalGate(cfg.Redis.Cooldown, gateLogger), func() {}
	}

	if cfg.Redis.Addr == "" {
		return local()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, using in-process cooldown")
		rdb.Close()
		return local()
	}

	logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Sharing rate-limit cooldowns through Redis")
	return ratelimit.NewTracker(rdb, cfg.Redis.Cooldown, gateLogger), func() { rdb.Close() }
}

// textWidth sizes the post preview column to the terminal. Output that is
// not a terminal gets no preview.
func textWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	// Rank, URL, date and both counters take roughly 80 columns.
	if rest := width - 80; rest >= 10 {
		return rest
	}
	return 0
}
