package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, GetLevel("DEBUG"))
	require.Equal(t, logrus.WarnLevel, GetLevel("warning"))
	require.Equal(t, logrus.InfoLevel, GetLevel(""))
	require.Equal(t, logrus.InfoLevel, GetLevel("loud"))
}

func TestSetupConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	closer := Setup(SetupParams{Level: "info", JSON: true, Console: &buf})
	defer func() { _ = closer.Close() }()

	logrus.WithField("session_id", "abc").Info("session saved")
	logrus.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "session saved", entry["msg"])
	require.Equal(t, "abc", entry["session_id"])
}

func TestSetupFile(t *testing.T) {
	dir := t.TempDir()
	closer := Setup(SetupParams{FileName: filepath.Join(dir, "rollmetrics"), Level: "debug"})
	logrus.Debug("to file")
	require.NoError(t, closer.Close())
	logrus.SetOutput(os.Stderr)

	data, err := os.ReadFile(filepath.Join(dir, "rollmetrics.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "to file")
}
