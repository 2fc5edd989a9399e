// Package pipeline runs the per-message delivery pipeline: read, authorize,
// rewrite, archive, dispatch, report. Every invocation processes exactly one
// message and finishes with exactly one terminal log entry and a documented
// exit code.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/infodancer/listrelay/internal/archive"
	"github.com/infodancer/listrelay/internal/authorize"
	"github.com/infodancer/listrelay/internal/config"
	"github.com/infodancer/listrelay/internal/dispatch"
	"github.com/infodancer/listrelay/internal/message"
	"github.com/infodancer/listrelay/internal/metrics"
	"github.com/infodancer/listrelay/internal/ratelimit"
	"github.com/infodancer/listrelay/internal/rewrite"
	"github.com/infodancer/listrelay/internal/status"
)

// Process exit codes. These are a deployment contract: the invoking MDA
// keys its retry/bounce policy off them. They follow sysexits.h so stock
// MDAs interpret them sensibly (75 in particular requests a requeue).
const (
	ExitSuccess          = 0  // message accepted, dispatch attempted
	ExitInternal         = 1  // unexpected internal failure
	ExitMalformed        = 65 // EX_DATAERR: unparseable or oversized input
	ExitTransportFailure = 75 // EX_TEMPFAIL: outbound relay unreachable
	ExitRejected         = 77 // EX_NOPERM: sender not authorized to post
	ExitConfig           = 78 // EX_CONFIG: configured header rule is invalid
)

// Pipeline holds the collaborators for one invocation. All dependencies are
// injected so tests can substitute synthetic configurations and transports.
type Pipeline struct {
	cfg        config.Config
	logger     *slog.Logger
	archiver   *archive.Archiver
	limiter    ratelimit.Limiter
	dispatcher dispatch.Dispatcher
	collector  metrics.Collector
}

// New creates a Pipeline.
func New(cfg config.Config, logger *slog.Logger, archiver *archive.Archiver, limiter ratelimit.Limiter, dispatcher dispatch.Dispatcher, collector metrics.Collector) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		archiver:   archiver,
		limiter:    limiter,
		dispatcher: dispatcher,
		collector:  collector,
	}
}

// Run processes one raw message from r and returns the process exit code.
// Every path, including fatal aborts, passes through the terminal report.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) int {
	raw, err := message.ReadAll(r, int64(p.cfg.Limits.MaxMessageSize))
	if err != nil {
		rec := status.New("")
		rec.Reject(status.DispositionMalformed, err.Error())
		// Nothing trustworthy was read, so there is nothing to archive.
		p.writeStatus(ctx, rec)
		return p.report(ctx, rec, ExitMalformed)
	}

	msg, err := message.Parse(raw)
	if err != nil {
		rec := status.New("")
		rec.Reject(status.DispositionMalformed, err.Error())
		p.archiveEntry(ctx, raw, rec)
		return p.report(ctx, rec, ExitMalformed)
	}

	sender := msg.Sender()
	rec := status.New(sender)

	decision := authorize.Check(sender, p.cfg.Recipients, p.cfg.RejectNonRecipients)
	if !decision.Accepted {
		rec.Reject(status.DispositionRejected, decision.Reason)
		// Rejections are archived too: the audit trail covers everything
		// the tool was handed, not only what it forwarded.
		p.archiveEntry(ctx, raw, rec)
		return p.report(ctx, rec, ExitRejected)
	}
	rec.Accept()

	allowed, err := p.limiter.Allow(ctx, sender)
	if err != nil {
		// A broken limiter backend must not stop list mail; fail open.
		p.logger.Warn("rate limiter unavailable, allowing post", slog.String("error", err.Error()))
		allowed = true
	}
	if !allowed {
		rec.Reject(status.DispositionRateLimited, "sender posted too recently")
		p.archiveEntry(ctx, raw, rec)
		return p.report(ctx, rec, ExitRejected)
	}

	rewrite.Filter(msg, p.cfg.HeaderWhitelist)
	if err := rewrite.Apply(msg, p.cfg.SetHeaders); err != nil {
		rec.Reject(status.DispositionInvalidHeader, err.Error())
		p.archiveEntry(ctx, raw, rec)
		return p.report(ctx, rec, ExitConfig)
	}

	// Pre-send snapshot: the original message plus a pending status, so a
	// crash mid-send leaves a truthful partial record.
	p.archiveEntry(ctx, raw, rec)

	outcomes, dispatchErr := p.dispatcher.Dispatch(ctx, msg, p.cfg.Recipients)
	rec.Recipients = outcomes

	if dispatchErr != nil {
		rec.Disposition = status.DispositionTransportFailure
		rec.Reason = dispatchErr.Error()
		p.writeStatus(ctx, rec)
		if errors.Is(dispatchErr, dispatch.ErrTransportConnection) {
			return p.report(ctx, rec, ExitTransportFailure)
		}
		return p.report(ctx, rec, ExitInternal)
	}

	rec.Disposition = status.DispositionSent
	p.writeStatus(ctx, rec)
	return p.report(ctx, rec, ExitSuccess)
}

// archiveEntry writes the message bytes and the current status snapshot.
// Archive failures are degraded conditions: logged and counted, never fatal,
// because losing an audit record beats silently dropping mail the MDA
// believes was handled.
func (p *Pipeline) archiveEntry(ctx context.Context, raw []byte, rec *status.Record) {
	if err := p.archiver.ArchiveMessage(raw); err != nil {
		p.collector.ArchiveError()
		p.logger.Warn("archiving message failed", slog.String("error", err.Error()))
	}
	p.writeStatus(ctx, rec)
}

func (p *Pipeline) writeStatus(ctx context.Context, rec *status.Record) {
	if err := p.archiver.WriteStatus(rec); err != nil {
		p.collector.ArchiveError()
		p.logger.Warn("archiving status failed", slog.String("error", err.Error()))
	}
}

// report emits the single terminal log entry, flushes metrics, and returns
// the exit code unchanged.
func (p *Pipeline) report(ctx context.Context, rec *status.Record, code int) int {
	p.collector.MessageProcessed(string(rec.Disposition))
	for _, o := range rec.Recipients {
		p.collector.RecipientSend(string(o.Result))
	}
	if err := p.collector.Flush(ctx); err != nil {
		p.logger.Warn("flushing metrics failed", slog.String("error", err.Error()))
	}

	p.logger.Info("delivery complete",
		slog.String("sender", rec.Sender),
		slog.Bool("accepted", rec.Accepted),
		slog.String("disposition", string(rec.Disposition)),
		slog.String("reason", rec.Reason),
		slog.Int("recipients", len(rec.Recipients)),
		slog.Int("succeeded", rec.Succeeded()),
		slog.Int("failed", rec.Failed()),
		slog.Int("exit_code", code),
	)
	return code
}
