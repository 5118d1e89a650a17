package telemetry

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, SetupLogging("debug", false))
	require.Equal(t, log.DebugLevel, log.GetLevel())

	require.Error(t, SetupLogging("chatty", false))
}
