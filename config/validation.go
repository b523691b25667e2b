package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

func oneOf(value string, allowed ...string) bool {
	for _, v := range allowed {
		if value == v {
			return true
		}
	}
	return false
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

// Validate checks the HTTP server settings.
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"read_timeout", s.ReadTimeout},
		{"write_timeout", s.WriteTimeout},
		{"idle_timeout", s.IdleTimeout},
		{"read_header_timeout", s.ReadHeaderTimeout},
		{"shutdown_timeout", s.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			errs = append(errs, t.name+" must be positive")
		}
	}

	return joinErrs(errs)
}

// Validate checks the storage adapter selection and any adapter-specific
// settings.
func (s *StorageConfig) Validate() error {
	var errs []string

	adapters := []string{"memory", "redis", "sql", "file"}
	if !oneOf(s.Adapter, adapters...) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(adapters, ", ")))
	}

	if s.Adapter == "file" {
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	}

	return joinErrs(errs)
}

// Validate checks file storage configuration.
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate checks logging configuration.
func (l *LoggingConfig) Validate() error {
	var errs []string

	if levels := []string{"debug", "info", "warn", "error"}; !oneOf(l.Level, levels...) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(levels, ", ")))
	}
	if formats := []string{"json", "text"}; !oneOf(l.Format, formats...) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(formats, ", ")))
	}
	if outputs := []string{"stdout", "stderr"}; !oneOf(l.Output, outputs...) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(outputs, ", ")))
	}

	return joinErrs(errs)
}
