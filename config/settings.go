package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Defaults applied when a setting is absent.
const (
	DefaultOutputPath     = "news_articles.csv"
	DefaultRequestDelay   = 1.0
	DefaultRequestTimeout = 30.0
	DefaultSchedule       = "@every 12h"
)

// Settings is the raw settings block.
type Settings struct {
	StartDate            string   `yaml:"start_date"`
	OutputPath           string   `yaml:"output_path"`
	OutputCSV            string   `yaml:"output_csv"` // older name for output_path
	OutputFormat         string   `yaml:"output_format"`
	RequestDelay         *float64 `yaml:"request_delay"`
	RequestTimeout       *float64 `yaml:"request_timeout"`
	MaxRetries           int      `yaml:"max_retries"`
	MaxArticlesPerSource int      `yaml:"max_articles_per_source"`
	SaveInterval         int      `yaml:"save_interval"`
	KeepUndated          *bool    `yaml:"keep_undated"`
	LogFile              string   `yaml:"log_file"`
	Schedule             string   `yaml:"schedule"`
}

// RunSettings are the settings with defaults applied and values converted.
type RunSettings struct {
	StartDate            time.Time
	OutputPath           string
	OutputFormat         string
	RequestDelay         time.Duration
	RequestTimeout       time.Duration
	MaxRetries           int
	MaxArticlesPerSource int
	SaveInterval         int
	KeepUndated          bool
	LogFile              string
	Schedule             string
}

// Resolve applies defaults and validates the settings. A missing start_date
// means "today" (midnight UTC of now).
func (s Settings) Resolve(now time.Time) (RunSettings, error) {
	rs := RunSettings{
		OutputPath:           s.OutputPath,
		MaxRetries:           s.MaxRetries,
		MaxArticlesPerSource: s.MaxArticlesPerSource,
		SaveInterval:         s.SaveInterval,
		KeepUndated:          true,
		LogFile:              s.LogFile,
		Schedule:             s.Schedule,
	}

	if s.StartDate == "" {
		y, m, d := now.UTC().Date()
		rs.StartDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	} else {
		start, err := time.Parse("2006-01-02", strings.TrimSpace(s.StartDate))
		if err != nil {
			return RunSettings{}, &ConfigError{Field: "settings.start_date", Err: ErrInvalidDate}
		}
		rs.StartDate = start
	}

	if rs.OutputPath == "" {
		rs.OutputPath = s.OutputCSV
	}
	if rs.OutputPath == "" {
		rs.OutputPath = DefaultOutputPath
	}

	rs.OutputFormat = strings.ToLower(s.OutputFormat)
	if rs.OutputFormat == "" {
		rs.OutputFormat = InferFormat(rs.OutputPath)
	}
	if rs.OutputFormat != "csv" && rs.OutputFormat != "sqlite" {
		return RunSettings{}, &ConfigError{Field: "settings.output_format", Err: ErrInvalidFormat}
	}

	delay := DefaultRequestDelay
	if s.RequestDelay != nil {
		delay = *s.RequestDelay
	}
	timeout := DefaultRequestTimeout
	if s.RequestTimeout != nil {
		timeout = *s.RequestTimeout
	}

	for field, v := range map[string]float64{
		"settings.request_delay":           delay,
		"settings.request_timeout":         timeout,
		"settings.max_retries":             float64(s.MaxRetries),
		"settings.max_articles_per_source": float64(s.MaxArticlesPerSource),
		"settings.save_interval":           float64(s.SaveInterval),
	} {
		if v < 0 {
			return RunSettings{}, &ConfigError{Field: field, Err: ErrNegativeSetting}
		}
	}

	rs.RequestDelay = time.Duration(delay * float64(time.Second))
	rs.RequestTimeout = time.Duration(timeout * float64(time.Second))

	if s.KeepUndated != nil {
		rs.KeepUndated = *s.KeepUndated
	}
	if rs.Schedule == "" {
		rs.Schedule = DefaultSchedule
	}

	return rs, nil
}

// InferFormat picks the output format from a file extension.
func InferFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return "csv"
	}
}
