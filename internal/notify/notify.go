package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"medbook/internal/booking"

	"github.com/rs/zerolog"
)

// Console prints each report as one line, like a blocking alert in a terminal.
// Diagnostics go to the logger only.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zerolog.Logger
}

// NewConsole constructs a console notifier writing reports to out.
func NewConsole(out io.Writer, logger *zerolog.Logger) *Console {
	return &Console{out: out, logger: logger}
}

func (c *Console) ReportSuccess(ctx context.Context, message string) {
	c.print(ctx, message)
}

func (c *Console) ReportFailure(ctx context.Context, message string) {
	c.print(ctx, message)
}

func (c *Console) LogDiagnostic(ctx context.Context, err error) {
	logger(ctx, c.logger).Error().Err(err).Msg("booking attempt failed")
}

func (c *Console) print(ctx context.Context, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.out, message); err != nil {
		logger(ctx, c.logger).Warn().Err(err).Msg("failed to print report")
	}
}

// logger prefers the request-scoped logger carried by ctx.
func logger(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if fallback != nil {
		return fallback
	}
	nop := zerolog.Nop()
	return &nop
}

// Multi forwards every call to each notifier in order.
type Multi []booking.Notifier

func (m Multi) ReportSuccess(ctx context.Context, message string) {
	for _, n := range m {
		n.ReportSuccess(ctx, message)
	}
}

func (m Multi) ReportFailure(ctx context.Context, message string) {
	for _, n := range m {
		n.ReportFailure(ctx, message)
	}
}

func (m Multi) LogDiagnostic(ctx context.Context, err error) {
	for _, n := range m {
		n.LogDiagnostic(ctx, err)
	}
}
