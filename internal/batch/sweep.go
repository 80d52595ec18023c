// Package batch holds one-shot jobs run outside the HTTP server, such as
// the hold sweeper triggered by a Step Functions state machine.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/iliyamo/ferry-reservation/internal/clock"
)

// HoldReleaser releases holds that expired before now.
type HoldReleaser interface {
	ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error)
}

// Report is the outcome of a sweep run, sent to the task notifier as JSON.
type Report struct {
	Released   int64     `json:"released"`
	SweptAt    time.Time `json:"swept_at"`
	DurationMS int64     `json:"duration_ms"`
}

// SweepBatch runs one pass of the hold sweeper and reports the outcome.
type SweepBatch struct {
	releaser HoldReleaser
	notifier TaskNotifier
	clock    clock.Clock
	log      *slog.Logger
}

// NewSweepBatch builds a SweepBatch.  A nil notifier reports nowhere.
func NewSweepBatch(releaser HoldReleaser, notifier TaskNotifier, clk clock.Clock, log *slog.Logger) *SweepBatch {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = slog.Default()
	}
	return &SweepBatch{releaser: releaser, notifier: notifier, clock: clk, log: log}
}

// Run releases expired holds once.  Success and failure are both reported
// to the notifier; a failed notification is returned only when the sweep
// itself succeeded.
func (b *SweepBatch) Run(ctx context.Context) (Report, error) {
	if xray.GetSegment(ctx) != nil {
		var seg *xray.Segment
		ctx, seg = xray.BeginSubsegment(ctx, "SweepBatch.Run")
		defer seg.Close(nil)
	}

	start := b.clock.Now()
	n, err := b.releaser.ReleaseExpiredHolds(ctx, start)
	if err != nil {
		b.log.Error("hold sweep failed", "err", err)
		if nerr := b.notifier.Failure(ctx, "HoldSweepFailed", err.Error()); nerr != nil {
			b.log.Error("task failure notification failed", "err", nerr)
		}
		return Report{}, fmt.Errorf("release expired holds: %w", err)
	}

	rep := Report{
		Released:   n,
		SweptAt:    start,
		DurationMS: b.clock.Now().Sub(start).Milliseconds(),
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		if err := seg.AddMetadata("released", n); err != nil {
			b.log.Warn("add trace metadata", "err", err)
		}
	}
	b.log.Info("hold sweep completed", "released", n, "duration_ms", rep.DurationMS)

	if err := b.notifier.Success(ctx, rep); err != nil {
		return rep, fmt.Errorf("notify task success: %w", err)
	}
	return rep, nil
}
