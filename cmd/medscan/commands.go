package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jrsteele09/go-medscan-client/apiclient"
	"github.com/jrsteele09/go-medscan-client/medicine"
	"github.com/jrsteele09/go-medscan-client/scan"
	"github.com/jrsteele09/go-medscan-client/sessions"
	"github.com/jrsteele09/go-medscan-client/suggest"
)

var stdout io.Writer = os.Stdout

type command struct {
	help string
	run  func(ctx context.Context, a *app, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":          {"sign in: -email -password", cmdLogin},
		"signup":         {"create an account: -name -email -password [-role doctor]", cmdSignup},
		"logout":         {"sign out and forget the device session", cmdLogout},
		"whoami":         {"show the signed-in user", cmdWhoami},
		"forgot":         {"send a password reset code: -email", cmdForgot},
		"reset":          {"set a new password: -email -otp -password", cmdReset},
		"google-login":   {"print the Google sign-in URL", cmdGoogleLogin},
		"lookup":         {"show details for a medicine: <name>", cmdLookup},
		"suggest":        {"type-ahead suggestions: <text>", cmdSuggest},
		"scan":           {"extract and look up medicines from a photo: [-camera] <image>", cmdScan},
		"save":           {"save a medicine to your list: <name>", cmdSave},
		"saved":          {"list saved medicines", cmdSaved},
		"schedule":       {"add a medicine course: -name -date -days -per-day -times [-interval]", cmdSchedule},
		"upload-report":  {"summarize a report: [-save] <pdf|image>...", cmdUploadReport},
		"reports":        {"list saved report summaries: [user-id]", cmdReports},
		"ask":            {"ask the assistant: <question>", cmdAsk},
		"search-doctor":  {"find doctors by name: <name>", cmdSearchDoctor},
		"request-access": {"ask a doctor for access: <doctor-id>", cmdRequestAccess},
		"requests":       {"doctor: list pending access requests", cmdRequests},
		"accept":         {"doctor: accept a patient's request: <patient-id>", cmdAccept},
		"patients":       {"doctor: list authorized patients", cmdPatients},
	}
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinArgs(args []string, what string) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	return text, nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("MEDSCAN_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.account.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Signed in as %s (%s)\n", displayName(session), session.Role)
	return nil
}

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("MEDSCAN_PASSWORD"), "account password")
	role := fs.String("role", string(sessions.RolePatient), "patient or doctor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.account.Signup(ctx, *name, *email, *password, sessions.Role(*role))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Welcome %s, you are signed in as a %s\n", displayName(session), session.Role)
	return nil
}

func displayName(s sessions.Session) string {
	if s.Name != "" {
		return s.Name
	}
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if err := a.account.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Signed out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	session, err := a.account.CurrentSession()
	if err != nil {
		return err
	}
	if session == nil {
		fmt.Fprintln(stdout, "Not signed in")
		return nil
	}
	details, err := a.account.UserDetails(ctx)
	if err != nil {
		return err
	}
	return printJSON(details)
}

func cmdForgot(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("forgot", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := a.account.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, msg)
	return nil
}

func cmdReset(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	otp := fs.String("otp", "", "code from the reset email")
	password := fs.String("password", os.Getenv("MEDSCAN_PASSWORD"), "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := a.account.ResetPassword(ctx, *email, *otp, *password)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, msg)
	return nil
}

func cmdGoogleLogin(ctx context.Context, a *app, args []string) error {
	url, err := a.account.GoogleLoginURL(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Open this URL in a browser to continue:\n%s\n", url)
	return nil
}

func cmdLookup(ctx context.Context, a *app, args []string) error {
	name, err := joinArgs(args, "medicine name")
	if err != nil {
		return err
	}
	detail, err := a.medicine.Detail(ctx, name)
	if err != nil {
		return err
	}
	return printJSON(detail)
}

// cmdSuggest replays text one keystroke at a time through the debouncer, the way a
// search field would, and prints the suggestions for the final text.
func cmdSuggest(ctx context.Context, a *app, args []string) error {
	text, err := joinArgs(args, "text")
	if err != nil {
		return err
	}

	results := make(chan suggest.Result, 16)
	debouncer, err := suggest.New(a.medicine, func(r suggest.Result) { results <- r },
		suggest.WithQuietPeriod(a.config.GetSuggestionQuietPeriod()),
		suggest.WithMinLength(a.config.GetMinSuggestionLength()),
	)
	if err != nil {
		return err
	}
	defer debouncer.Close()

	keystroke := a.config.GetSuggestionQuietPeriod() / 5
	runes := []rune(text)
	for i := range runes {
		debouncer.OnInput(string(runes[:i+1]))
		time.Sleep(keystroke)
	}

	want := strings.TrimSpace(text)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-results:
			if r.Query != want {
				continue
			}
			if r.Err != nil {
				return r.Err
			}
			if len(r.Suggestions) == 0 {
				fmt.Fprintln(stdout, "No suggestions")
				return nil
			}
			for _, s := range r.Suggestions {
				fmt.Fprintln(stdout, s)
			}
			return nil
		}
	}
}

func cmdScan(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	camera := fs.Bool("camera", false, "use the camera instead of a file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	source := scan.SourceGallery
	if *camera {
		source = scan.SourceCamera
	}
	pipeline, err := scan.New(scan.FilePicker{Path: fs.Arg(0)}, a.medicine, a.medicine,
		scan.WithConcurrency(a.config.GetDetailFetchConcurrency()),
	)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, source)
	if err != nil {
		return err
	}
	if res.NoMedicinesFound {
		fmt.Fprintln(stdout, "No medicines found in the image")
		return nil
	}
	for _, skipped := range res.Skipped {
		fmt.Fprintf(stdout, "Could not look up %q: %v\n", skipped.Name, skipped.Err)
	}
	return printJSON(res.Items)
}

func cmdSave(ctx context.Context, a *app, args []string) error {
	name, err := joinArgs(args, "medicine name")
	if err != nil {
		return err
	}
	detail, err := a.medicine.Detail(ctx, name)
	if err != nil {
		return err
	}
	if err := a.medicine.Save(ctx, detail); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved %s\n", detail.BrandName)
	return nil
}

func cmdSaved(ctx context.Context, a *app, args []string) error {
	saved, err := a.medicine.SavedMedicines(ctx)
	if err != nil {
		return err
	}
	return printJSON(saved)
}

func cmdSchedule(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	name := fs.String("name", "", "medicine name")
	date := fs.String("date", time.Now().Format(time.DateOnly), "consulting date, YYYY-MM-DD")
	days := fs.Int("days", 0, "dosage period in days")
	perDay := fs.Int("per-day", 0, "doses per day")
	times := fs.String("times", "", "comma separated dose times, e.g. 08:00,20:00")
	interval := fs.String("interval", "", "optional interval description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	consulting, err := time.Parse(time.DateOnly, *date)
	if err != nil {
		return fmt.Errorf("bad -date: %w", err)
	}
	var doseTimes []string
	for _, t := range strings.Split(*times, ",") {
		if t = strings.TrimSpace(t); t != "" {
			doseTimes = append(doseTimes, t)
		}
	}

	err = a.medicine.AddSchedule(ctx, medicine.Schedule{
		Name:           *name,
		ConsultingDate: consulting,
		DosagePeriod:   *days,
		NumMedicines:   *perDay,
		Interval:       *interval,
		Times:          doseTimes,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Scheduled %s\n", *name)
	return nil
}

func cmdUploadReport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("upload-report", flag.ContinueOnError)
	save := fs.Bool("save", false, "save the summary to your profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one file is required")
	}

	var pages []apiclient.File
	for _, path := range fs.Args() {
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			rendered, err := a.reports.RenderPDF(ctx, path)
			if err != nil {
				return err
			}
			pages = append(pages, rendered...)
			continue
		}
		image, err := scan.FilePicker{Path: path}.Pick(ctx, scan.SourceGallery)
		if err != nil {
			return err
		}
		pages = append(pages, image)
	}

	summary, err := a.reports.Upload(ctx, pages...)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Summary:\n%s\n", summary.Summary)

	if *save {
		if err := a.reports.SaveSummary(ctx, summary.RecognizedText, summary.Summary); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Summary saved")
	}
	return nil
}

func cmdReports(ctx context.Context, a *app, args []string) error {
	var userID string
	if len(args) > 0 {
		userID = args[0]
	}
	list, err := a.reports.List(ctx, userID)
	if err != nil {
		return err
	}
	return printJSON(list)
}

func cmdAsk(ctx context.Context, a *app, args []string) error {
	question, err := joinArgs(args, "question")
	if err != nil {
		return err
	}
	answer, err := a.chat.Ask(ctx, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, answer)
	return nil
}

func cmdSearchDoctor(ctx context.Context, a *app, args []string) error {
	name, err := joinArgs(args, "doctor name")
	if err != nil {
		return err
	}
	found, err := a.doctors.Search(ctx, name)
	if err != nil {
		return err
	}
	return printJSON(found)
}

func cmdRequestAccess(ctx context.Context, a *app, args []string) error {
	doctorID, err := joinArgs(args, "doctor id")
	if err != nil {
		return err
	}
	if err := a.doctors.RequestAccess(ctx, doctorID); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Access requested")
	return nil
}

func cmdRequests(ctx context.Context, a *app, args []string) error {
	pending, err := a.doctors.PendingRequests(ctx)
	if err != nil {
		return err
	}
	return printJSON(pending)
}

func cmdAccept(ctx context.Context, a *app, args []string) error {
	patientID, err := joinArgs(args, "patient id")
	if err != nil {
		return err
	}
	if err := a.doctors.AcceptRequest(ctx, patientID); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Request accepted")
	return nil
}

func cmdPatients(ctx context.Context, a *app, args []string) error {
	patients, err := a.doctors.AuthorizedPatients(ctx)
	if err != nil {
		return err
	}
	return printJSON(patients)
}
