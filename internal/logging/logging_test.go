package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/dbkit/internal/config"
)

func TestApplyOutputs_WritesRotatingFile(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	path := filepath.Join(t.TempDir(), "logs", "dbkit.log")
	var console bytes.Buffer

	loader := config.NewLoader(config.MapSettings{"log.compress": "false"})
	applyOutputs(&console, loader, path)
	t.Cleanup(func() { log.Logger = zerolog.New(os.Stderr) })

	log.Info().Str("table", "users").Msg("Creating table")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "Creating table") {
		t.Fatalf("log file missing message: %q", data)
	}
	if !strings.Contains(console.String(), "Creating table") {
		t.Fatalf("console missing message: %q", console.String())
	}
}

func TestLevelForVerbosity(t *testing.T) {
	for v, want := range map[int]string{0: "info", 1: "debug", 2: "trace", 5: "trace"} {
		if got := LevelForVerbosity(v); got != want {
			t.Fatalf("LevelForVerbosity(%d) = %q, want %q", v, got, want)
		}
	}
}

func TestFilePathForDB(t *testing.T) {
	if got := FilePathForDB(""); got != DefaultLogFilePath {
		t.Fatalf("expected default path, got %q", got)
	}
	dir := t.TempDir()
	if got := FilePathForDB(filepath.Join(dir, "app.db")); got != filepath.Join(dir, DefaultLogFilePath) {
		t.Fatalf("expected log beside database, got %q", got)
	}
}
