package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.Nil(t, DefaultConfig().Validate())
	assert.Nil(t, Config{Level: "debug"}.Validate())
	assert.NotNil(t, Config{Level: "loud"}.Validate())
}

func TestSetLogrus(t *testing.T) {
	defer SetLogrus(*DefaultConfig())

	SetLogrus(Config{Level: "warn"})
	require.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	SetLogrus(Config{Level: "debug", Structured: true})
	require.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
}
