package batch

import (
	"context"
	"errors"

	"medbook/internal/booking"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Submitter performs one booking attempt.
type Submitter interface {
	Submit(ctx context.Context, form booking.FormFieldSource) (*booking.Confirmation, error)
}

// Summary counts the outcomes of a batch run.
type Summary struct {
	Total    int
	Booked   int
	Rejected int
	Failed   int
}

// Runner books a list of forms one after another, paced by a token bucket.
type Runner struct {
	submitter Submitter
	limiter   *rate.Limiter
	logger    *zerolog.Logger
}

// NewRunner constructs a runner allowing ratePerSecond attempts with the given burst.
// A non-positive rate disables pacing.
func NewRunner(s Submitter, ratePerSecond float64, burst int, logger *zerolog.Logger) *Runner {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Runner{
		submitter: s,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}
}

// Run submits forms in order. Failed attempts do not stop the run;
// only context cancellation does, returning the summary so far.
func (r *Runner) Run(ctx context.Context, forms []booking.FormFieldSource) (Summary, error) {
	var sum Summary
	for i, f := range forms {
		if err := r.limiter.Wait(ctx); err != nil {
			return sum, err
		}

		_, err := r.submitter.Submit(ctx, f)
		sum.Total++

		var rej *booking.RejectionError
		switch {
		case err == nil:
			sum.Booked++
		case errors.As(err, &rej):
			sum.Rejected++
		default:
			sum.Failed++
		}
		r.logger.Debug().Int("index", i).Err(err).Msg("batch entry done")
	}

	r.logger.Info().
		Int("total", sum.Total).
		Int("booked", sum.Booked).
		Int("rejected", sum.Rejected).
		Int("failed", sum.Failed).
		Msg("batch finished")
	return sum, nil
}
