// Command list-deliver forwards one inbound message to a configured list of
// recipients. It is invoked by a mail delivery agent once per message, reads
// the raw message on stdin, and reports the outcome through its exit status:
//
//	0  message accepted and dispatch attempted
//	65 input could not be parsed as a message (EX_DATAERR)
//	75 outbound relay unreachable, safe to requeue (EX_TEMPFAIL)
//	77 sender not authorized to post (EX_NOPERM)
//	78 configured header rule produced an illegal value (EX_CONFIG)
//	1  internal error
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/infodancer/listrelay/internal/archive"
	"github.com/infodancer/listrelay/internal/config"
	"github.com/infodancer/listrelay/internal/dispatch"
	"github.com/infodancer/listrelay/internal/logging"
	"github.com/infodancer/listrelay/internal/metrics"
	"github.com/infodancer/listrelay/internal/pipeline"
	"github.com/infodancer/listrelay/internal/ratelimit"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := config.ParseFlags()
	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list-deliver:", err)
		return pipeline.ExitInternal
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "list-deliver: invalid configuration:", err)
		return pipeline.ExitConfig
	}

	logger, closeLog, err := logging.Open(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list-deliver:", err)
		return pipeline.ExitInternal
	}
	defer closeLog() //nolint:errcheck

	// One correlation ID per invocation; the MDA may run several copies of
	// this tool concurrently against the same log file.
	logger = logging.WithDelivery(logger, uuid.NewString()[:8])

	var limiter ratelimit.Limiter = ratelimit.Noop{}
	if cfg.RateLimit.Enabled {
		rl := ratelimit.NewRedis(cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisDB, cfg.RateLimit.WindowDuration())
		defer rl.Close() //nolint:errcheck
		limiter = rl
	}

	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.PushURL != "" {
		collector = metrics.NewPushCollector(cfg.Metrics.PushURL, cfg.Metrics.Job)
	}

	p := pipeline.New(
		cfg,
		logger,
		archive.New(cfg.ArchiveDir),
		limiter,
		dispatch.NewSMTP(cfg.SMTP, logger),
		collector,
	)
	return p.Run(context.Background(), os.Stdin)
}
