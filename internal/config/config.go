package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

type Config struct {
	App
	DNAnexus
	PostgreSQL
	Slack
	HTTP
}

type App struct {
	WatchDirectory   string
	WatchPlatform    bool
	ClinGenDirectory string
	TimeToCheck      time.Duration
	PollInterval     time.Duration
	JobTimeout       time.Duration
	Concurrency      int
	PIDDivID         string
}

type DNAnexus struct {
	Token         string
	Project       string
	WorkbookAppID string
	Hotspots      string
	RefgeneGroup  string
	ClinVar       string
	ClinVarIndex  string
}

type PostgreSQL struct {
	Host     string
	Port     string
	Username string
	Password string
	DBName   string
}

type Slack struct {
	Token        string
	LogChannel   string
	AlertChannel string
}

type HTTP struct {
	Host         string
	Port         string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ReferenceInputs maps the workbook app's reference input names to the
// configured platform file ids.
func (d DNAnexus) ReferenceInputs() map[string]string {
	return map[string]string{
		"hotspots":      d.Hotspots,
		"refgene_group": d.RefgeneGroup,
		"clinvar":       d.ClinVar,
		"clinvar_index": d.ClinVarIndex,
	}
}

func Load(cmd *cli.Command) *Config {
	return &Config{
		App: App{
			WatchDirectory:   cmd.String("watch-dir"),
			WatchPlatform:    cmd.Bool("watch-platform"),
			ClinGenDirectory: cmd.String("clingen-dir"),
			TimeToCheck:      cmd.Duration("time-to-check"),
			PollInterval:     cmd.Duration("poll-interval"),
			JobTimeout:       cmd.Duration("job-timeout"),
			Concurrency:      int(cmd.Int("concurrency")),
			PIDDivID:         cmd.String("pid-div-id"),
		},
		DNAnexus: DNAnexus{
			Token:         cmd.String("dx-token"),
			Project:       cmd.String("dx-project"),
			WorkbookAppID: cmd.String("workbook-app"),
			Hotspots:      cmd.String("hotspots"),
			RefgeneGroup:  cmd.String("refgene-group"),
			ClinVar:       cmd.String("clinvar"),
			ClinVarIndex:  cmd.String("clinvar-index"),
		},
		PostgreSQL: PostgreSQL{
			Host:     cmd.String("pg-host"),
			Port:     cmd.String("pg-port"),
			Username: cmd.String("pg-username"),
			Password: cmd.String("pg-password"),
			DBName:   cmd.String("pg-dbname"),
		},
		Slack: Slack{
			Token:        cmd.String("slack-token"),
			LogChannel:   cmd.String("slack-log-channel"),
			AlertChannel: cmd.String("slack-alert-channel"),
		},
		HTTP: HTTP{
			Host:         cmd.String("http-host"),
			Port:         cmd.String("http-port"),
			IdleTimeout:  cmd.Duration("http-idle-timeout"),
			ReadTimeout:  cmd.Duration("http-read-timeout"),
			WriteTimeout: cmd.Duration("http-write-timeout"),
		},
	}
}
