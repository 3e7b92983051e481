package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Form field identifiers read by the booking form.
const (
	FieldPatient = "patient"
	FieldDoctor  = "doctor"
	FieldDate    = "date"
	FieldTime    = "time"
)

// FormFields lists the booking form fields in the order they are read.
var FormFields = []string{FieldPatient, FieldDoctor, FieldDate, FieldTime}

// ErrNotObject is returned when a response body is valid JSON but not an object.
var ErrNotObject = errors.New("response body is not a JSON object")

// BookingRequest is the body of POST /book.
type BookingRequest struct {
	PatientName string `json:"patient_name"`
	DoctorName  string `json:"doctor_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// JSONValue holds a raw JSON value whose type the server does not promise.
// The zero value means the field was absent.
type JSONValue struct {
	raw     json.RawMessage
	present bool
}

// NewJSONValue wraps raw JSON text.
func NewJSONValue(raw []byte) JSONValue {
	return JSONValue{raw: append(json.RawMessage(nil), raw...), present: true}
}

// Present reports whether the field was present in the body.
func (v JSONValue) Present() bool { return v.present }

// Raw returns the JSON text as received.
func (v JSONValue) Raw() json.RawMessage { return v.raw }

// String renders the value for display: strings unquoted, null as "null",
// an absent field as "undefined", anything else as compact JSON.
func (v JSONValue) String() string {
	if !v.present {
		return "undefined"
	}
	trimmed := bytes.TrimSpace(v.raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return "null"
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

func (v *JSONValue) UnmarshalJSON(b []byte) error {
	v.raw = append(v.raw[:0], b...)
	v.present = true
	return nil
}

func (v JSONValue) MarshalJSON() ([]byte, error) {
	if !v.present || len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// BookingResponse is the body returned by POST /book, on success or failure.
type BookingResponse struct {
	AppointmentID JSONValue `json:"appointment_id"`
	Message       JSONValue `json:"message"`
	Detail        JSONValue `json:"detail"`
}

// ParseBookingResponse decodes a /book response body. The body must be a JSON object.
func ParseBookingResponse(body []byte) (*BookingResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, ErrNotObject
	}

	var resp BookingResponse
	if raw, ok := fields["appointment_id"]; ok {
		resp.AppointmentID = NewJSONValue(raw)
	}
	if raw, ok := fields["message"]; ok {
		resp.Message = NewJSONValue(raw)
	}
	if raw, ok := fields["detail"]; ok {
		resp.Detail = NewJSONValue(raw)
	}
	return &resp, nil
}

// Appointment is an appointment as reported by the booking service.
type Appointment struct {
	ID          int64  `json:"id"`
	PatientName string `json:"patient_name"`
	DoctorName  string `json:"doctor_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// Slots lists the free slots of a date.
type Slots struct {
	Date           string   `json:"date"`
	AvailableSlots []string `json:"available_slots"`
}

// Dashboard is the response of GET /doctor-dashboard.
type Dashboard struct {
	DoctorName   string        `json:"doctor_name,omitempty"`
	Appointments []Appointment `json:"appointments"`
	Total        int           `json:"total"`
}

// CancelResult is the response of DELETE /cancel/{id}.
type CancelResult struct {
	Message       string `json:"message"`
	AppointmentID int64  `json:"appointment_id"`
}

// RescheduleRequest is the body of PUT /reschedule/{id}.
type RescheduleRequest struct {
	NewDate string `json:"new_date"`
	NewTime string `json:"new_time"`
}

// RescheduleResult is the response of PUT /reschedule/{id}.
type RescheduleResult struct {
	Message       string `json:"message"`
	AppointmentID int64  `json:"appointment_id"`
	OldDate       string `json:"old_date"`
	OldTime       string `json:"old_time"`
	NewDate       string `json:"new_date"`
	NewTime       string `json:"new_time"`
}

// Outcome classifies a finished booking attempt.
type Outcome string

const (
	OutcomeBooked   Outcome = "booked"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Attempt describes one finished booking attempt.
type Attempt struct {
	ID            string         `json:"id"`
	Request       BookingRequest `json:"request"`
	Outcome       Outcome        `json:"outcome"`
	StatusCode    int            `json:"status_code"` // 0 when no response was received
	AppointmentID string         `json:"appointment_id,omitempty"`
	Message       string         `json:"message"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
