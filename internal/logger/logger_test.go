package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	defer func() { _ = Configure("info", "text") }()

	require.NoError(t, Configure("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, Base().GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Base().Formatter)

	assert.Error(t, Configure("loud", "text"))
	assert.Error(t, Configure("info", "xml"))
}

func TestLoggerCarriesComponent(t *testing.T) {
	hook := test.NewLocal(Base())
	defer hook.Reset()

	log := NewLogger("LXCService")
	log.Warn("duplicate vmid %s", "101")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "duplicate vmid 101", entry.Message)
	assert.Equal(t, "LXCService", entry.Data["component"])

	log.With("vmid", "200").Error("failed")
	entry = hook.LastEntry()
	assert.Equal(t, "200", entry.Data["vmid"])
	assert.Equal(t, "LXCService", entry.Data["component"])
}
