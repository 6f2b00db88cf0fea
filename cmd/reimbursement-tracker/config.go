package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "REIMBURSEMENT_TRACKER"

// loadDotEnv reads KEY=value pairs from path into the environment. Variables that are
// already set win, and a missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// parseYAMLConfig feeds a YAML document to ff. Nested maps become dash-joined flag
// names, so `s3: {bucket: receipts}` sets --s3-bucket; lists set the flag once per item.
func parseYAMLConfig(r io.Reader, set func(name, value string) error) error {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding config: %w", err)
	}
	return setYAMLValues("", doc, set)
}

func setYAMLValues(prefix string, doc map[string]any, set func(name, value string) error) error {
	for key, value := range doc {
		name := key
		if prefix != "" {
			name = prefix + "-" + key
		}
		switch v := value.(type) {
		case map[string]any:
			if err := setYAMLValues(name, v, set); err != nil {
				return err
			}
		case []any:
			for _, item := range v {
				if err := set(name, fmt.Sprint(item)); err != nil {
					return fmt.Errorf("config %s: %w", name, err)
				}
			}
		case nil:
		default:
			if err := set(name, fmt.Sprint(v)); err != nil {
				return fmt.Errorf("config %s: %w", name, err)
			}
		}
	}
	return nil
}

// configureLogging installs a text slog handler at the requested level
func configureLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// splitList turns "a, b,,c" into [a b c]
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
