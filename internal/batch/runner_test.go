package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"medbook/internal/booking"
	"medbook/internal/form"
	"medbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSubmitter answers by patient name and records the order of calls.
type scriptedSubmitter struct {
	answers map[string]error
	seen    []string
}

func (s *scriptedSubmitter) Submit(ctx context.Context, f booking.FormFieldSource) (*booking.Confirmation, error) {
	name, _ := f.Value(ctx, models.FieldPatient)
	s.seen = append(s.seen, name)
	if err := s.answers[name]; err != nil {
		return nil, err
	}
	return &booking.Confirmation{}, nil
}

func forms(names ...string) []booking.FormFieldSource {
	out := make([]booking.FormFieldSource, 0, len(names))
	for _, n := range names {
		out = append(out, form.Static{models.FieldPatient: n})
	}
	return out
}

func TestRunner_CountsOutcomesInOrder(t *testing.T) {
	sub := &scriptedSubmitter{answers: map[string]error{
		"b": &booking.RejectionError{StatusCode: 409, Detail: "Slot not available"},
		"c": fmt.Errorf("%w: connection refused", booking.ErrServer),
		"e": errors.New("unexpected"),
	}}
	logger := zerolog.Nop()
	r := NewRunner(sub, 0, 0, &logger)

	sum, err := r.Run(context.Background(), forms("a", "b", "c", "d", "e"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, sub.seen)
	assert.Equal(t, Summary{Total: 5, Booked: 2, Rejected: 1, Failed: 2}, sum)
}

func TestRunner_Paced(t *testing.T) {
	sub := &scriptedSubmitter{}
	logger := zerolog.Nop()
	r := NewRunner(sub, 20, 1, &logger)

	start := time.Now()
	sum, err := r.Run(context.Background(), forms("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Booked)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRunner_StopsOnCancel(t *testing.T) {
	sub := &scriptedSubmitter{}
	logger := zerolog.Nop()
	r := NewRunner(sub, 0.001, 1, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sum, err := r.Run(ctx, forms("a", "b"))
	assert.Error(t, err)
	assert.Equal(t, 1, sum.Total, "first entry uses the initial token")
	assert.Equal(t, []string{"a"}, sub.seen)
}
