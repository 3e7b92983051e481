package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Journal.Path = filepath.Join(t.TempDir(), "medbook.db")
	return cfg
}

func runCLI(t *testing.T, cfg *config.Config, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	logger := zerolog.Nop()
	code := run(context.Background(), args, cfg, &logger, env{
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
	})
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clinicServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /book", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["time"] == "09:00" {
			writeJSON(w, http.StatusConflict, map[string]any{"detail": "Slot not available"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointment_id": 7, "message": "Booked"})
	})
	mux.HandleFunc("GET /slots", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"date":            r.URL.Query().Get("date"),
			"available_slots": []string{"10:00", "11:00"},
		})
	})
	mux.HandleFunc("GET /appointment/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "7" {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Appointment not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 7, "patient_name": "Ann", "doctor_name": "Dr. Lee",
			"date": "2024-05-01", "time": "10:00", "status": "booked",
		})
	})
	mux.HandleFunc("DELETE /cancel/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Appointment cancelled", "appointment_id": 7})
	})
	mux.HandleFunc("PUT /reschedule/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Appointment rescheduled", "appointment_id": 7,
			"old_date": "2024-05-01", "old_time": "10:00",
			"new_date": req["new_date"], "new_time": req["new_time"],
		})
	})
	mux.HandleFunc("GET /doctor-dashboard", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"appointments": []map[string]any{{
				"id": 7, "patient_name": "Ann", "doctor_name": "Dr. Lee",
				"date": "2024-05-01", "time": "10:00", "status": "booked",
			}},
			"total": 1,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_Usage(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	res := runCLI(t, cfg, "")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "usage: medbook")

	res = runCLI(t, cfg, "", "frobnicate")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `unknown command "frobnicate"`)
}

func TestBook_Outcomes(t *testing.T) {
	srv := clinicServer(t)
	cfg := testConfig(t, srv.URL)

	res := runCLI(t, cfg, "", "book", "--patient", "Ann", "--doctor", "Dr. Lee", "--date", "2024-05-01", "--time", "10:00")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "Booked with ID: 7\n", res.stdout)

	res = runCLI(t, cfg, "", "book", "--patient", "Ann", "--doctor", "Dr. Lee", "--date", "2024-05-01", "--time", "09:00")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Slot not available\n", res.stdout)
	assert.Empty(t, res.stderr)

	down := testConfig(t, "http://127.0.0.1:1")
	res = runCLI(t, down, "", "book", "--patient", "Ann")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Server error\n", res.stdout)
}

func TestBook_InteractiveAndFormFile(t *testing.T) {
	srv := clinicServer(t)
	cfg := testConfig(t, srv.URL)

	res := runCLI(t, cfg, "Ann\nDr. Lee\n2024-05-01\n10:00\n", "book", "--interactive")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "Booked with ID: 7\n", res.stdout)
	assert.Contains(t, res.stderr, "Patient name: ")

	path := filepath.Join(t.TempDir(), "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patient: Ann\ndoctor: Dr. Lee\ndate: 2024-05-01\ntime: \"09:00\"\n"), 0o600))
	res = runCLI(t, cfg, "", "book", "--form", path)
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Slot not available\n", res.stdout)
}

func TestBatch_PrintsSummary(t *testing.T) {
	srv := clinicServer(t)
	cfg := testConfig(t, srv.URL)

	path := filepath.Join(t.TempDir(), "batch.yaml")
	content := `forms:
  - {patient: Ann, doctor: Dr. Lee, date: "2024-05-01", time: "10:00"}
  - {patient: Bob, doctor: Dr. Lee, date: "2024-05-01", time: "09:00"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	res := runCLI(t, cfg, "", "batch", path)
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Booked with ID: 7\nSlot not available\ntotal: 2, booked: 1, rejected: 1, failed: 0\n", res.stdout)

	res = runCLI(t, cfg, "", "batch")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "usage: medbook batch")
}

func TestHistory_ListsAndExports(t *testing.T) {
	srv := clinicServer(t)
	cfg := testConfig(t, srv.URL)

	require.Equal(t, 0, runCLI(t, cfg, "", "book", "--patient", "Ann", "--doctor", "Dr. Lee", "--date", "2024-05-01", "--time", "10:00").code)
	require.Equal(t, 1, runCLI(t, cfg, "", "book", "--patient", "Bob", "--doctor", "Dr. Lee", "--date", "2024-05-01", "--time", "09:00").code)

	res := runCLI(t, cfg, "", "history")
	require.Equal(t, 0, res.code, res.stderr)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "rejected")
	assert.Contains(t, lines[0], "Slot not available")
	assert.Contains(t, lines[1], "booked")
	assert.Contains(t, lines[1], "Booked with ID: 7")
	assert.Equal(t, "booked: 1, rejected: 1, failed: 0", lines[2])

	res = runCLI(t, cfg, "", "history", "--outcome", "booked")
	assert.Equal(t, 2, strings.Count(res.stdout, "\n"))

	out := filepath.Join(t.TempDir(), "history.xlsx")
	res = runCLI(t, cfg, "", "history", "--export", out)
	require.Equal(t, 0, res.code, res.stderr)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Attempts")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestHistory_JournalDisabled(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Journal.Enabled = false

	res := runCLI(t, cfg, "", "history")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "journal is disabled")
}

func TestAppointmentCommands(t *testing.T) {
	srv := clinicServer(t)
	cfg := testConfig(t, srv.URL)

	res := runCLI(t, cfg, "", "slots", "--date", "2024-05-01")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "2024-05-01: 10:00, 11:00\n", res.stdout)

	res = runCLI(t, cfg, "", "show", "7")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "#7  2024-05-01 10:00  Ann with Dr. Lee  [booked]\n", res.stdout)

	res = runCLI(t, cfg, "", "show", "8")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Appointment not found")

	res = runCLI(t, cfg, "", "show", "abc")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `invalid appointment id "abc"`)

	res = runCLI(t, cfg, "", "cancel", "7")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "Appointment cancelled\n", res.stdout)

	res = runCLI(t, cfg, "", "reschedule", "7", "--date", "2024-05-02", "--time", "11:00")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "Appointment rescheduled (2024-05-01 10:00 -> 2024-05-02 11:00)\n", res.stdout)

	res = runCLI(t, cfg, "", "reschedule", "7", "--date", "2024-05-02")
	assert.Equal(t, 1, res.code)

	res = runCLI(t, cfg, "", "dashboard", "--doctor", "Dr. Lee")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "#7  2024-05-01 10:00  Ann with Dr. Lee  [booked]\ntotal: 1\n", res.stdout)
}

func TestHealth(t *testing.T) {
	srv := clinicServer(t)

	res := runCLI(t, testConfig(t, srv.URL), "", "health")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "ok\n", res.stdout)

	res = runCLI(t, testConfig(t, "http://127.0.0.1:1"), "", "health")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "booking service")
}
