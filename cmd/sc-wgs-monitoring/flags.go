package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/app"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/config"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/pipeline"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func cmd() *cli.Command {
	return &cli.Command{
		Name:    "sc-wgs-monitoring",
		Usage:   "Solid cancer WGS workbook pipeline",
		Version: version,
		Flags:   flags(),
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Expose the tracker audit trail over HTTP",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					log, ok := ctx.Value(loggerKey{}).(*slog.Logger)
					if !ok {
						return errors.New("failed to get logger from context")
					}

					return app.New(log, config.Load(cmd)).Serve(ctx)
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log, ok := ctx.Value(loggerKey{}).(*slog.Logger)
			if !ok {
				return errors.New("failed to get logger from context")
			}

			cfg := config.Load(cmd)
			a := app.New(log, cfg)

			switch {
			case cmd.Bool("start-jobs") && cmd.Bool("check-jobs"):
				return errors.New("--start-jobs and --check-jobs are mutually exclusive")
			case cmd.Bool("start-jobs"):
				return a.StartJobs(ctx, cmd.StringSlice("dnanexus-ids"), cmd.StringSlice("local-paths"))
			case cmd.Bool("check-jobs"):
				return a.CheckJobs(ctx)
			default:
				return errors.New("one of --start-jobs or --check-jobs is required")
			}
		},
	}
}

func flags() []cli.Flag {
	var configFile string

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"C"},
			Validator:   validateConfig,
			Usage:       "Load configuration from `FILE`",
			Destination: &configFile,
		},
		&cli.BoolFlag{
			Name:    "start-jobs",
			Aliases: []string{"s"},
			Usage:   "Launch workbook jobs for newly detected samples",
		},
		&cli.BoolFlag{
			Name:    "check-jobs",
			Aliases: []string{"c"},
			Usage:   "Monitor workbook jobs started in the trailing window",
		},
		&cli.StringSliceFlag{
			Name:  "dnanexus-ids",
			Usage: "Explicit platform file ids to process, bypassing dedup",
		},
		&cli.StringSliceFlag{
			Name:  "local-paths",
			Usage: "Explicit local files to process",
		},
		&cli.StringFlag{
			Name:      "watch-dir",
			Aliases:   []string{"w"},
			Usage:     "Set directory to watch for new sample files",
			Value:     "input",
			Sources:   cli.NewValueSourceChain(yaml.YAML("app.watch_dir", altsrc.NewStringPtrSourcer(&configFile))),
			Validator: validateDirectory,
		},
		&cli.BoolFlag{
			Name:    "watch-platform",
			Usage:   "Discover new sample files in the DNAnexus project instead of the watch directory",
			Sources: cli.NewValueSourceChain(yaml.YAML("app.watch_platform", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:      "clingen-dir",
			Usage:     "Set directory finished workbooks are downloaded to",
			Value:     "output",
			Sources:   cli.NewValueSourceChain(yaml.YAML("app.clingen_dir", altsrc.NewStringPtrSourcer(&configFile))),
			Validator: validateDirectory,
		},
		&cli.DurationFlag{
			Name:    "time-to-check",
			Aliases: []string{"t"},
			Value:   24 * time.Hour,
			Usage:   "Set trailing window for discovery and job checking",
			Sources: cli.NewValueSourceChain(yaml.YAML("app.time_to_check", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Value:   pipeline.DefaultPollInterval,
			Usage:   "Set interval between job state polls",
			Sources: cli.NewValueSourceChain(yaml.YAML("app.poll_interval", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "job-timeout",
			Value:   pipeline.DefaultJobTimeout,
			Usage:   "Set upper bound on waiting for a single job",
			Sources: cli.NewValueSourceChain(yaml.YAML("app.job_timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Value:   pipeline.DefaultConcurrency,
			Usage:   "Set worker pool width for launching and monitoring",
			Sources: cli.NewValueSourceChain(yaml.YAML("app.concurrency", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "pid-div-id",
			Value:   "patient-information",
			Usage:   "Set id of the supplementary HTML div holding patient data",
			Sources: cli.NewValueSourceChain(yaml.YAML("app.pid_div_id", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:     "dx-token",
			Usage:    "Set DNAnexus API token",
			Sources:  cli.NewValueSourceChain(cli.EnvVar("DNANEXUS_TOKEN")),
			Required: true,
		},
		&cli.StringFlag{
			Name:      "dx-project",
			Usage:     "Set DNAnexus project to work in",
			Sources:   cli.NewValueSourceChain(yaml.YAML("dnanexus.project", altsrc.NewStringPtrSourcer(&configFile))),
			Required:  true,
			Validator: validatePlatformID,
		},
		&cli.StringFlag{
			Name:      "workbook-app",
			Usage:     "Set DNAnexus workbook app id",
			Sources:   cli.NewValueSourceChain(yaml.YAML("dnanexus.workbook_app", altsrc.NewStringPtrSourcer(&configFile))),
			Required:  true,
			Validator: validatePlatformID,
		},
		&cli.StringFlag{
			Name:      "hotspots",
			Usage:     "Set hotspots reference file id",
			Sources:   cli.NewValueSourceChain(yaml.YAML("dnanexus.hotspots", altsrc.NewStringPtrSourcer(&configFile))),
			Required:  true,
			Validator: validatePlatformID,
		},
		&cli.StringFlag{
			Name:      "refgene-group",
			Usage:     "Set refgene group reference file id",
			Sources:   cli.NewValueSourceChain(yaml.YAML("dnanexus.refgene_group", altsrc.NewStringPtrSourcer(&configFile))),
			Required:  true,
			Validator: validatePlatformID,
		},
		&cli.StringFlag{
			Name:      "clinvar",
			Usage:     "Set clinvar reference file id",
			Sources:   cli.NewValueSourceChain(yaml.YAML("dnanexus.clinvar", altsrc.NewStringPtrSourcer(&configFile))),
			Required:  true,
			Validator: validatePlatformID,
		},
		&cli.StringFlag{
			Name:      "clinvar-index",
			Usage:     "Set clinvar index reference file id",
			Sources:   cli.NewValueSourceChain(yaml.YAML("dnanexus.clinvar_index", altsrc.NewStringPtrSourcer(&configFile))),
			Required:  true,
			Validator: validatePlatformID,
		},
		&cli.StringFlag{
			Name:     "slack-token",
			Usage:    "Set Slack API token",
			Sources:  cli.NewValueSourceChain(cli.EnvVar("SLACK_TOKEN")),
			Required: true,
		},
		&cli.StringFlag{
			Name:    "slack-log-channel",
			Usage:   "Set Slack channel for run logs",
			Value:   "egg-logs",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SLACK_LOG_CHANNEL"), yaml.YAML("slack.log_channel", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "slack-alert-channel",
			Usage:   "Set Slack channel for failure alerts",
			Value:   "egg-alerts",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SLACK_ALERT_CHANNEL"), yaml.YAML("slack.alert_channel", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "pg-host",
			Usage:   "Set PostgreSQL host",
			Value:   "localhost",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DB_HOST"), yaml.YAML("postgresql.host", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "pg-port",
			Usage:   "Set PostgreSQL port",
			Value:   "5432",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DB_PORT"), yaml.YAML("postgresql.port", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:     "pg-username",
			Usage:    "Set PostgreSQL username",
			Sources:  cli.NewValueSourceChain(cli.EnvVar("DB_USER"), yaml.YAML("postgresql.username", altsrc.NewStringPtrSourcer(&configFile))),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "pg-password",
			Usage:    "Set PostgreSQL password",
			Sources:  cli.NewValueSourceChain(cli.EnvVar("DB_PASSWORD")),
			Required: true,
		},
		&cli.StringFlag{
			Name:    "pg-dbname",
			Usage:   "Set PostgreSQL database name",
			Value:   "ngtd",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DB_NAME"), yaml.YAML("postgresql.dbname", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "http-host",
			Usage:   "Set HTTP server host",
			Value:   "localhost",
			Sources: cli.NewValueSourceChain(yaml.YAML("http.host", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.StringFlag{
			Name:    "http-port",
			Usage:   "Set HTTP server port",
			Value:   "8080",
			Sources: cli.NewValueSourceChain(yaml.YAML("http.port", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "http-idle-timeout",
			Usage:   "Set HTTP server idle timeout",
			Value:   1 * time.Minute,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.idle_timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "http-read-timeout",
			Usage:   "Set HTTP server read timeout",
			Value:   15 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.read_timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
		&cli.DurationFlag{
			Name:    "http-write-timeout",
			Usage:   "Set HTTP server write timeout",
			Value:   15 * time.Second,
			Sources: cli.NewValueSourceChain(yaml.YAML("http.write_timeout", altsrc.NewStringPtrSourcer(&configFile))),
		},
	}
}

func validateDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%q does not exist", dir)
		}
		return fmt.Errorf("failed to stat %q: %w", dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", dir)
	}

	return nil
}

func validatePlatformID(id string) error {
	if !domain.ValidPlatformID(id) {
		return fmt.Errorf("%q is not a valid DNAnexus id", id)
	}

	return nil
}

func validateConfig(configFile string) error {
	info, err := os.Stat(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%q does not exist", configFile)
		}
		return fmt.Errorf("failed to stat %q: %w", configFile, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%q is a directory, not a file", configFile)
	}

	ext := filepath.Ext(info.Name())
	if ext != ".yml" && ext != ".yaml" {
		return fmt.Errorf("invalid extension %q", configFile)
	}

	return nil
}
