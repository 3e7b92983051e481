package booking

import (
	"context"

	"medbook/internal/clinicapi"
	"medbook/internal/models"
)

// FormFieldSource returns the raw value of a form field by its identifier.
type FormFieldSource interface {
	Value(ctx context.Context, key string) (string, error)
}

// Notifier presents booking outcomes to the user.
type Notifier interface {
	ReportSuccess(ctx context.Context, message string)
	ReportFailure(ctx context.Context, message string)
	LogDiagnostic(ctx context.Context, err error)
}

// Booker sends a booking request and returns the response as received.
type Booker interface {
	Book(ctx context.Context, req models.BookingRequest) (*clinicapi.RawResponse, error)
}

// EventPublisher receives every finished attempt.
type EventPublisher interface {
	PublishAttempt(attempt models.Attempt) error
}
