package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"medbook/internal/metrics"
	"medbook/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the address of the local booking service.
const DefaultBaseURL = "http://127.0.0.1:8000"

const slotsKeyPrefix = "slots:"

// Client is an HTTP client for the clinic booking service.
type Client struct {
	baseURL    string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration

	metrics *metrics.Metrics
}

// RawResponse is an uninterpreted response: status and the full body.
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *RawResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// APIError is returned for non-2xx responses to lookup and change operations.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewClient constructs a client. An empty baseURL selects DefaultBaseURL;
// a nil httpClient selects a client without timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// UseRedisCache configures optional Redis caching for slot lookups.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseMetrics records every request on m.
func (c *Client) UseMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// BaseURL returns the service address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type requestIDKey struct{}

// WithRequestID attaches the id sent as X-Request-ID by requests made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Book sends one POST /book and returns the status and body as received.
// The body is not interpreted; an error means no complete response was read.
func (c *Client) Book(ctx context.Context, req models.BookingRequest) (*RawResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode booking request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/book", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.send(httpReq, "book")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read booking response: %w", err)
	}

	raw := &RawResponse{StatusCode: resp.StatusCode, Body: body}
	if raw.OK() {
		c.dropSlots(ctx, req.Date)
	}
	return raw, nil
}

// ListSlots returns the free slots of date (YYYY-MM-DD).
func (c *Client) ListSlots(ctx context.Context, date string) (*models.Slots, error) {
	cacheKey := slotsKeyPrefix + date
	var slots models.Slots

	if c.readCache(ctx, cacheKey, &slots) {
		return &slots, nil
	}

	endpoint := fmt.Sprintf("%s/slots?date=%s", c.baseURL, url.QueryEscape(date))
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "slots", nil, &slots); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, slots)
	return &slots, nil
}

// GetAppointment fetches an appointment by id.
func (c *Client) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	endpoint := fmt.Sprintf("%s/appointment/%s", c.baseURL, strconv.FormatInt(id, 10))
	var appt models.Appointment
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "appointment", nil, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// CancelAppointment cancels an appointment and releases its slot.
func (c *Client) CancelAppointment(ctx context.Context, id int64) (*models.CancelResult, error) {
	endpoint := fmt.Sprintf("%s/cancel/%s", c.baseURL, strconv.FormatInt(id, 10))
	var res models.CancelResult
	if err := c.doJSON(ctx, http.MethodDelete, endpoint, "cancel", nil, &res); err != nil {
		return nil, err
	}
	// The response does not say which date was released.
	c.dropAllSlots(ctx)
	return &res, nil
}

// RescheduleAppointment moves an appointment to a new date and time.
func (c *Client) RescheduleAppointment(ctx context.Context, id int64, req models.RescheduleRequest) (*models.RescheduleResult, error) {
	endpoint := fmt.Sprintf("%s/reschedule/%s", c.baseURL, strconv.FormatInt(id, 10))
	var res models.RescheduleResult
	if err := c.doJSON(ctx, http.MethodPut, endpoint, "reschedule", req, &res); err != nil {
		return nil, err
	}
	c.dropSlots(ctx, res.OldDate, res.NewDate)
	return &res, nil
}

// DoctorDashboard lists appointments of doctorName, or of every doctor when empty.
func (c *Client) DoctorDashboard(ctx context.Context, doctorName string) (*models.Dashboard, error) {
	endpoint := c.baseURL + "/doctor-dashboard"
	if doctorName != "" {
		endpoint += "?doctor_name=" + url.QueryEscape(doctorName)
	}
	var dash models.Dashboard
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "dashboard", nil, &dash); err != nil {
		return nil, err
	}
	return &dash, nil
}

// HealthCheck checks that the booking service answers slot lookups.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/slots?date=%s", c.baseURL, time.Now().Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.send(req, "health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, name string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(req, name)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

// send performs req with the request id header and records metrics.
func (c *Client) send(req *http.Request, name string) (*http.Response, error) {
	id := requestID(req.Context())
	req.Header.Set("X-Request-ID", id)
	req.Header.Set("Accept", "application/json")

	l := zerolog.Ctx(req.Context())
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(name, 0, elapsed)
		l.Debug().Err(err).Str("endpoint", name).Str("request_id", id).Msg("request failed")
		return nil, err
	}
	c.metrics.ObserveRequest(name, resp.StatusCode, elapsed)
	l.Debug().
		Str("endpoint", name).
		Str("request_id", id).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("request done")
	return resp, nil
}

func readDetail(resp *http.Response) string {
	var body struct {
		Detail models.JSONValue `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.Detail.Present() {
		return http.StatusText(resp.StatusCode)
	}
	return body.Detail.String()
}

func (c *Client) cacheEnabled() bool {
	return c.redis != nil && c.cacheTTL > 0
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if !c.cacheEnabled() {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if !c.cacheEnabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) dropSlots(ctx context.Context, dates ...string) {
	if !c.cacheEnabled() {
		return
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		if d != "" {
			keys = append(keys, slotsKeyPrefix+d)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("failed to drop cached slots")
	}
}

func (c *Client) dropAllSlots(ctx context.Context) {
	if !c.cacheEnabled() {
		return
	}
	iter := c.redis.Scan(ctx, 0, slotsKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to scan cached slots")
		return
	}
	if len(keys) > 0 {
		_ = c.redis.Del(ctx, keys...).Err()
	}
}
