package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/upcoming/internal/formatter"
	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/server"
	"github.com/desertthunder/upcoming/internal/shared"
	"github.com/desertthunder/upcoming/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun syncs every configured venue in the foreground.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("starting sync", "venues", len(r.config.Venues))

	progress, done := r.progress(cmd.Bool("json"))
	summary, err := r.scheduler.RunNow(ctx, progress)
	close(progress)
	<-done

	if err != nil {
		return err
	}
	return r.writeSummary(cmd, summary)
}

// SyncVenue syncs the venue named by the id argument.
func (r *Runner) SyncVenue(ctx context.Context, cmd *cli.Command) error {
	venueID := cmd.StringArg("id")
	if venueID == "" {
		return fmt.Errorf("%w: venue id", shared.ErrMissingArgument)
	}

	r.logger.Info("starting sync", "venue", venueID)

	progress, done := r.progress(cmd.Bool("json"))
	summary, err := r.scheduler.RunVenue(ctx, venueID, progress)
	close(progress)
	<-done

	if err != nil {
		return err
	}
	return r.writeSummary(cmd, summary)
}

// progress prints updates until the returned channel is closed; done is closed once printing stops.
//
// Only venue-level updates are printed. JSON output suppresses progress entirely.
func (r *Runner) progress(quiet bool) (chan tasks.ProgressUpdate, <-chan struct{}) {
	progressCh := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progressCh {
			if quiet {
				continue
			}
			switch update.Phase {
			case tasks.ScrapeVenue:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ReconcileLineup, tasks.SyncPlaylist:
				r.writePlain("   %s\n", update.Message)
			case tasks.ResolveArtists:
				r.logger.Debug(update.Message)
			case tasks.VenueDone:
				r.writePlain("%s\n\n", update.Message)
			}
		}
	}()

	return progressCh, done
}

// writeSummary prints the run and saves a report when --save or --report is set.
func (r *Runner) writeSummary(cmd *cli.Command, summary *models.RunSummary) error {
	if cmd.Bool("save") || cmd.String("report") != "" {
		path, err := formatter.WriteRunReport(summary, cmd.String("report"))
		if err != nil {
			return err
		}
		r.logger.Info("report saved", "path", path)
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(summary, true); err != nil {
			return err
		}
	} else {
		r.writePlain("%s", formatter.FormatRun(r.palette, summary))
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d venues failed", summary.Failed, summary.Total)
	}
	return nil
}

// Serve starts the weekly scheduler and the HTTP API and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	host, port := cfg.Host, cfg.Port
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	handlers := []server.Handler{
		server.NewStatusHandler(r.scheduler, r.runs, r.engine.Reconciler(), r.creds),
		server.NewTriggerHandler(r.scheduler, cfg.TriggerLimit, cfg.TriggerWindow.Duration, r.logger),
	}
	if r.oauth != nil {
		handlers = append(handlers, server.NewOAuthHandler(r.oauth, r.creds))
	} else {
		r.logger.Warn("spotify client credentials not configured, /auth/spotify disabled")
	}

	srv := server.New(server.Options{Host: host, Port: port, Logger: r.logger}, handlers...)

	r.scheduler.Start(ctx)
	defer r.scheduler.Stop()

	status := r.scheduler.Status(ctx)
	r.writePlain("%s Serving on http://%s\n", r.palette.OK("✓"), srv.Addr())
	r.writePlain("Schedule: %s (next run %s)\n", status.Schedule, status.NextRun.Format("Mon Jan 2 15:04 MST"))

	return srv.Run(ctx)
}
