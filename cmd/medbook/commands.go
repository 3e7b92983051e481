package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"medbook/internal/batch"
	"medbook/internal/booking"
	"medbook/internal/form"
	"medbook/internal/journal"
	"medbook/internal/models"
)

// errReported marks a failure whose report has already been printed.
var errReported = errors.New("reported")

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"book":       cmdBook,
	"batch":      cmdBatch,
	"slots":      cmdSlots,
	"show":       cmdShow,
	"cancel":     cmdCancel,
	"reschedule": cmdReschedule,
	"dashboard":  cmdDashboard,
	"history":    cmdHistory,
	"health":     cmdHealth,
}

func newFlagSet(name string, a *app) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.env.stderr)
	return fs
}

func cmdBook(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("book", a)
	patient := fs.String("patient", "", "patient name")
	doctor := fs.String("doctor", "", "doctor name")
	date := fs.String("date", "", "date (YYYY-MM-DD)")
	tm := fs.String("time", "", "time (HH:MM)")
	formPath := fs.String("form", "", "YAML file with the form fields")
	interactive := fs.Bool("interactive", false, "prompt for each field")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var src booking.FormFieldSource
	switch {
	case *interactive:
		src = form.NewPrompt(a.env.stdin, a.env.stderr)
	case *formPath != "":
		values, err := form.LoadFile(*formPath)
		if err != nil {
			return err
		}
		src = values
	default:
		src = form.Static{
			models.FieldPatient: *patient,
			models.FieldDoctor:  *doctor,
			models.FieldDate:    *date,
			models.FieldTime:    *tm,
		}
	}

	if _, err := a.submitter.Submit(ctx, src); err != nil {
		return errReported
	}
	return nil
}

func cmdBatch(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: medbook batch <file.yaml>")
	}
	entries, err := form.LoadBatch(args[0])
	if err != nil {
		return err
	}

	if a.cfg.Monitoring.PrometheusEnabled {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go startMetricsServer(metricsCtx, a.cfg.Monitoring.PrometheusPort, a.registry, a.logger)
	}

	forms := make([]booking.FormFieldSource, 0, len(entries))
	for _, e := range entries {
		forms = append(forms, e)
	}

	runner := batch.NewRunner(a.submitter, a.cfg.Batch.RatePerSecond, a.cfg.Batch.Burst, a.logger)
	sum, err := runner.Run(ctx, forms)
	fmt.Fprintf(a.env.stdout, "total: %d, booked: %d, rejected: %d, failed: %d\n",
		sum.Total, sum.Booked, sum.Rejected, sum.Failed)
	if err != nil {
		return err
	}
	if sum.Booked != sum.Total {
		return errReported
	}
	return nil
}

func cmdSlots(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("slots", a)
	date := fs.String("date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	slots, err := a.client.ListSlots(ctx, *date)
	if err != nil {
		return err
	}
	if len(slots.AvailableSlots) == 0 {
		fmt.Fprintf(a.env.stdout, "%s: no free slots\n", slots.Date)
		return nil
	}
	fmt.Fprintf(a.env.stdout, "%s: %s\n", slots.Date, strings.Join(slots.AvailableSlots, ", "))
	return nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	id, _, err := splitID("show", args)
	if err != nil {
		return err
	}
	appt, err := a.client.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	printAppointment(a.env.stdout, *appt)
	return nil
}

func cmdCancel(ctx context.Context, a *app, args []string) error {
	id, _, err := splitID("cancel", args)
	if err != nil {
		return err
	}
	res, err := a.client.CancelAppointment(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.env.stdout, res.Message)
	return nil
}

func cmdReschedule(ctx context.Context, a *app, args []string) error {
	id, rest, err := splitID("reschedule", args)
	if err != nil {
		return err
	}
	fs := newFlagSet("reschedule", a)
	date := fs.String("date", "", "new date (YYYY-MM-DD)")
	tm := fs.String("time", "", "new time (HH:MM)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *date == "" || *tm == "" {
		return errors.New("reschedule needs --date and --time")
	}

	res, err := a.client.RescheduleAppointment(ctx, id, models.RescheduleRequest{NewDate: *date, NewTime: *tm})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.env.stdout, "%s (%s %s -> %s %s)\n", res.Message, res.OldDate, res.OldTime, res.NewDate, res.NewTime)
	return nil
}

func cmdDashboard(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("dashboard", a)
	doctor := fs.String("doctor", "", "only this doctor's appointments")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dash, err := a.client.DoctorDashboard(ctx, *doctor)
	if err != nil {
		return err
	}
	for _, appt := range dash.Appointments {
		printAppointment(a.env.stdout, appt)
	}
	fmt.Fprintf(a.env.stdout, "total: %d\n", dash.Total)
	return nil
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("history", a)
	limit := fs.Int("limit", 20, "number of attempts to list")
	outcome := fs.String("outcome", "", "booked, rejected or failed")
	export := fs.String("export", "", "write all attempts to this .xlsx file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.journal == nil {
		return errors.New("journal is disabled")
	}

	if *export != "" {
		f, err := os.Create(*export)
		if err != nil {
			return err
		}
		if err := a.journal.ExportExcel(ctx, f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}

	attempts, err := a.journal.List(ctx, journal.ListFilter{Outcome: models.Outcome(*outcome), Limit: *limit})
	if err != nil {
		return err
	}
	for _, at := range attempts {
		fmt.Fprintf(a.env.stdout, "%s  %-8s  %s / %s %s %s  %s\n",
			at.CreatedAt.Local().Format("2006-01-02 15:04:05"), at.Outcome,
			at.Request.PatientName, at.Request.DoctorName, at.Request.Date, at.Request.Time, at.Message)
	}

	counts, err := a.journal.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.env.stdout, "booked: %d, rejected: %d, failed: %d\n",
		counts[models.OutcomeBooked], counts[models.OutcomeRejected], counts[models.OutcomeFailed])
	return nil
}

func cmdHealth(ctx context.Context, a *app, _ []string) error {
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.client.HealthCheck(ctxPing); err != nil {
		return fmt.Errorf("booking service: %w", err)
	}
	if a.journal != nil {
		if err := a.journal.PingContext(ctxPing); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctxPing).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	fmt.Fprintln(a.env.stdout, "ok")
	return nil
}

// splitID takes the leading appointment id off args.
func splitID(name string, args []string) (int64, []string, error) {
	if len(args) == 0 {
		return 0, nil, fmt.Errorf("usage: medbook %s <id>", name)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("invalid appointment id %q", args[0])
	}
	return id, args[1:], nil
}

func printAppointment(w io.Writer, appt models.Appointment) {
	fmt.Fprintf(w, "#%d  %s %s  %s with %s  [%s]\n",
		appt.ID, appt.Date, appt.Time, appt.PatientName, appt.DoctorName, appt.Status)
}
