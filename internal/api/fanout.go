package api

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/thetafeed/internal/model"
)

// SplitDateRange partitions [start, end] into contiguous inclusive ranges of
// intervalDays days. The last range holds the remainder.
func SplitDateRange(start, end model.Date, intervalDays int) []model.DateRange {
	if end.Before(start) {
		return nil
	}
	if intervalDays <= 0 {
		intervalDays = 1
	}

	var ranges []model.DateRange
	for cur := start; !cur.After(end); {
		last := cur.AddDays(intervalDays - 1)
		if last.After(end) {
			last = end
		}
		ranges = append(ranges, model.DateRange{Start: cur, End: last})
		cur = last.AddDays(1)
	}
	return ranges
}

// IntervalDaysFor returns the sub-range size for data sampled every
// sampling. Tick data (zero) is split per day.
func IntervalDaysFor(sampling time.Duration) int {
	switch {
	case sampling <= 0:
		return 1
	case sampling < time.Hour:
		return 30
	default:
		return 90
	}
}

// FanOut splits req into intervalDays-sized ranges, fetches them in parallel
// and yields every page in range order. Any failing range fails the whole
// call before a single page is yielded.
func FanOut[T any](ctx context.Context, c *Client, req FetchRequest, intervalDays int) iter.Seq2[*Page[T], error] {
	return func(yield func(*Page[T], error) bool) {
		ranges := SplitDateRange(req.Range.Start, req.Range.End, intervalDays)
		requestID := uuid.NewString()
		logger := c.logger.With("request_id", requestID, "endpoint", req.Endpoint)

		logger.Debug("fan-out started",
			"range", req.Range.String(),
			"parts", len(ranges),
			"concurrency", c.fanOutConcurrency,
		)

		results := make([][]*Page[T], len(ranges))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.fanOutConcurrency)

		for i, rg := range ranges {
			sub := req.WithRange(rg)
			g.Go(func() error {
				for page, err := range Fetch[T](gctx, c, sub) {
					if err != nil {
						return err
					}
					results[i] = append(results[i], page)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			logger.Warn("fan-out failed", "error", err)
			yield(nil, err)
			return
		}

		for _, pages := range results {
			for _, page := range pages {
				if !yield(page, nil) {
					return
				}
			}
		}
	}
}

// Execute fetches req, fanning out only when its date span is longer than
// the sub-range size for its sampling interval.
func Execute[T any](ctx context.Context, c *Client, req FetchRequest) iter.Seq2[*Page[T], error] {
	days := IntervalDaysFor(req.Interval)
	if req.HasRange() && req.Range.Days() > days {
		return FanOut[T](ctx, c, req, days)
	}
	return Fetch[T](ctx, c, req)
}
