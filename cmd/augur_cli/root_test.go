package main

import (
	"bytes"
	"errors"
	"github.com/Avi18971911/augur-go/pkg/config"
	"github.com/stretchr/testify/assert"
	"os"
	"path/filepath"
	"testing"
)

const testDsn = "http://public@localhost:4317/1"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvDsn, "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCaptureMessage(t *testing.T) {
	t.Run("A dry run prints the event instead of sending it", func(t *testing.T) {
		out, err := execute(t, "--dry-run", "--dsn", testDsn, "capture-message", "--level", "warning", "--tag", "team=payments", "hello", "world")
		assert.Nil(t, err)
		assert.Contains(t, out, `"message": "hello world"`)
		assert.Contains(t, out, `"level": "warning"`)
		assert.Contains(t, out, `"team": "payments"`)
	})

	t.Run("Fails without a dsn", func(t *testing.T) {
		_, err := execute(t, "--dry-run", "capture-message", "hello")
		assert.True(t, errors.Is(err, ErrMissingDsn))
	})

	t.Run("Reads the transport from the configuration file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "augur.toml")
		assert.Nil(t, os.WriteFile(path, []byte("[transport]\nkind = \"carrier-pigeon\"\n"), 0o600))
		_, err := execute(t, "--config", path, "--dsn", testDsn, "capture-message", "hello")
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "carrier-pigeon")
	})
}

func TestCaptureException(t *testing.T) {
	t.Run("Captures the text as a handled error", func(t *testing.T) {
		out, err := execute(t, "--dry-run", "--dsn", testDsn, "capture-exception", "disk", "full")
		assert.Nil(t, err)
		assert.Contains(t, out, `"value": "disk full"`)
		assert.Contains(t, out, `"type": "generic"`)
	})
}

func TestSendSpan(t *testing.T) {
	t.Run("Sends a sampled transaction", func(t *testing.T) {
		out, err := execute(t, "--dry-run", "--dsn", testDsn, "send-span", "--name", "nightly-import", "--op", "task", "--duration", "1500ms")
		assert.Nil(t, err)
		assert.Contains(t, out, `"kind": "transaction"`)
		assert.Contains(t, out, `"transaction": "nightly-import"`)
		assert.Contains(t, out, `"op": "task"`)
	})

	t.Run("Requires a name", func(t *testing.T) {
		_, err := execute(t, "--dry-run", "--dsn", testDsn, "send-span")
		assert.NotNil(t, err)
	})

	t.Run("Rejects negative durations", func(t *testing.T) {
		_, err := execute(t, "--dry-run", "--dsn", testDsn, "send-span", "--name", "x", "--duration", "-1s")
		assert.NotNil(t, err)
	})
}
