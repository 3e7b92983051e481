package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medbook/internal/clinicapi"
	"medbook/internal/metrics"
	"medbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// ServerErrorMessage is shown for every transport or parse failure.
	ServerErrorMessage = "Server error"
	// SuccessPrefix precedes the appointment id in the success message.
	SuccessPrefix = "Booked with ID: "
)

// ErrServer marks transport and parse failures.
var ErrServer = errors.New("server error")

// RejectionError is a non-2xx answer from the booking service.
type RejectionError struct {
	StatusCode int
	Detail     string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("booking rejected (http %d): %s", e.StatusCode, e.Detail)
}

// Confirmation is the result of a successful booking.
type Confirmation struct {
	AppointmentID models.JSONValue
	Message       string
}

// Submitter runs booking attempts: read the form, POST it once, report once.
// It keeps no per-attempt state; overlapping Submit calls are independent.
type Submitter struct {
	booker    Booker
	notifier  Notifier
	publisher EventPublisher
	metrics   *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// NewSubmitter constructs a submitter over booker and notifier.
func NewSubmitter(booker Booker, notifier Notifier) *Submitter {
	return &Submitter{
		booker:   booker,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// UsePublisher publishes every finished attempt to p.
func (s *Submitter) UsePublisher(p EventPublisher) {
	s.publisher = p
}

// UseMetrics counts attempts by outcome on m.
func (s *Submitter) UseMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Submit performs one booking attempt with the values of form.
// Exactly one of ReportSuccess or ReportFailure is called on the notifier.
// On failure the error is a *RejectionError or wraps ErrServer.
func (s *Submitter) Submit(ctx context.Context, form FormFieldSource) (*Confirmation, error) {
	id := s.newID()
	l := zerolog.Ctx(ctx).With().Str("request_id", id).Logger()
	ctx = l.WithContext(clinicapi.WithRequestID(ctx, id))

	attempt := models.Attempt{ID: id, CreatedAt: s.now()}

	req, err := readRequest(ctx, form)
	if err != nil {
		return nil, s.fail(ctx, &attempt, 0, fmt.Errorf("read form: %w", err))
	}
	attempt.Request = req

	raw, err := s.booker.Book(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, &attempt, 0, err)
	}

	// The body is parsed before the status is looked at.
	resp, err := models.ParseBookingResponse(raw.Body)
	if err != nil {
		return nil, s.fail(ctx, &attempt, raw.StatusCode, fmt.Errorf("parse booking response: %w", err))
	}

	attempt.StatusCode = raw.StatusCode
	if !raw.OK() {
		detail := resp.Detail.String()
		attempt.Outcome = models.OutcomeRejected
		attempt.Message = detail
		s.notifier.ReportFailure(ctx, detail)
		s.finish(ctx, &attempt)
		l.Info().Int("status", raw.StatusCode).Str("detail", detail).Msg("booking rejected")
		return nil, &RejectionError{StatusCode: raw.StatusCode, Detail: detail}
	}

	conf := &Confirmation{AppointmentID: resp.AppointmentID}
	if resp.Message.Present() {
		conf.Message = resp.Message.String()
	}
	attempt.Outcome = models.OutcomeBooked
	attempt.AppointmentID = resp.AppointmentID.String()
	attempt.Message = SuccessPrefix + attempt.AppointmentID
	s.notifier.ReportSuccess(ctx, attempt.Message)
	s.finish(ctx, &attempt)
	l.Info().Str("appointment_id", attempt.AppointmentID).Msg("booking confirmed")
	return conf, nil
}

func readRequest(ctx context.Context, form FormFieldSource) (models.BookingRequest, error) {
	values := make(map[string]string, len(models.FormFields))
	for _, key := range models.FormFields {
		v, err := form.Value(ctx, key)
		if err != nil {
			return models.BookingRequest{}, fmt.Errorf("field %s: %w", key, err)
		}
		values[key] = v
	}
	return models.BookingRequest{
		PatientName: values[models.FieldPatient],
		DoctorName:  values[models.FieldDoctor],
		Date:        values[models.FieldDate],
		Time:        values[models.FieldTime],
	}, nil
}

func (s *Submitter) fail(ctx context.Context, attempt *models.Attempt, status int, cause error) error {
	err := fmt.Errorf("%w: %w", ErrServer, cause)
	attempt.Outcome = models.OutcomeFailed
	attempt.StatusCode = status
	attempt.Message = ServerErrorMessage
	attempt.Error = cause.Error()

	s.notifier.LogDiagnostic(ctx, err)
	s.notifier.ReportFailure(ctx, ServerErrorMessage)
	s.finish(ctx, attempt)
	return err
}

func (s *Submitter) finish(ctx context.Context, attempt *models.Attempt) {
	s.metrics.IncAttempt(attempt.Outcome)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAttempt(*attempt); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to publish booking attempt")
	}
}
