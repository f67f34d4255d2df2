package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"DailyDigest/internal/app"
	"DailyDigest/internal/infrastructure/mail"
	"DailyDigest/internal/infrastructure/scheduler"
	"DailyDigest/internal/ports"
	"DailyDigest/internal/usecase"
)

var (
	flagDate      string
	flagDryRun    bool
	flagCheckSMTP bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once for a day and deliver the digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, _, err := buildApp(ctx, app.Options{DryRun: flagDryRun})
		if err != nil {
			return err
		}
		defer application.Close()

		day, err := parseDay(flagDate, application.Today().Location(), application.Today())
		if err != nil {
			return err
		}

		report, err := application.RunOnce(ctx, day)
		printReport(cmd.OutOrStdout(), report)
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily scheduler and the status server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, logger, err := buildApp(ctx, app.Options{CronLog: os.Stdout})
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("application stopped", "error", err)
			return err
		}
		logger.Info("application stopped")
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Re-send the stored digest of a day without running the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, _, err := buildApp(ctx, app.Options{DryRun: flagDryRun})
		if err != nil {
			return err
		}
		defer application.Close()

		day, err := parseDay(flagDate, application.Today().Location(), application.Today())
		if err != nil {
			return err
		}

		report, err := application.Replay(ctx, day)
		printReport(cmd.OutOrStdout(), report)
		return err
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the next scheduled run",
	Long: "Validate the configuration and print the next scheduled run. With --smtp the command also\n" +
		"dials the configured SMTP server, authenticates and hangs up without sending anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := scheduler.Validate(cfg.Scheduler.CronExpression); err != nil {
			return err
		}

		loc := cfg.Scheduler.Location()
		next, err := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, loc, io.Discard).Next(time.Now().In(loc))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config OK: %d site(s), channel %s, batches of %d.\n", len(cfg.Sites), cfg.Delivery.Channel, cfg.Delivery.BatchSize)
		fmt.Fprintf(out, "Next run: %s\n", next.Format(time.RFC1123))

		if flagCheckSMTP {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := checkNotifier(ctx, mail.NewSMTPNotifier(cfg.Email, nil)); err != nil {
				return fmt.Errorf("smtp check %s:%d: %w", cfg.Email.SMTPHost, cfg.Email.SMTPPort, err)
			}
			fmt.Fprintf(out, "SMTP OK: %s:%d as %s\n", cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Sender)
		}
		return nil
	},
}

// checkNotifier opens one session and closes it again.
func checkNotifier(ctx context.Context, n ports.Notifier) error {
	session, err := n.Open(ctx)
	if err != nil {
		return err
	}
	return session.Close()
}

func init() {
	for _, c := range []*cobra.Command{runCmd, sendCmd} {
		c.Flags().StringVar(&flagDate, "date", "", "day to process as YYYY-MM-DD (default: today)")
		c.Flags().BoolVar(&flagDryRun, "dry-run", false, "render and store the digest without delivering it")
	}
	checkCmd.Flags().BoolVar(&flagCheckSMTP, "smtp", false, "also open and close an SMTP session with the configured credentials")
}

func printReport(w io.Writer, r usecase.Report) {
	if r.Day == "" {
		return
	}
	if r.Skipped {
		fmt.Fprintf(w, "%s: already handled, skipped.\n", r.Day)
		return
	}

	fmt.Fprintf(w, "%s: %s after %d attempt(s), %d item(s).\n", r.Day, r.Outcome.State, len(r.Outcome.Attempts), len(r.Outcome.Items))
	if r.Message.Subject != "" {
		fmt.Fprintf(w, "Subject: %s\n", r.Message.Subject)
	}
	if d := r.Delivery; d != nil {
		fmt.Fprintf(w, "Delivered to %d of %d recipient(s) in %d batch(es).\n", d.Succeeded, d.Recipients, d.Batches)
	}
}
