package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorder/internal/app"
)

func TestSetupDefaults(t *testing.T) {
	cfg, logger, err := setup()
	require.NoError(t, err)
	require.Equal(t, app.StorageDriverMemory, cfg.Driver)
	require.Equal(t, "order-service", logger.Data["service"])
}

func TestSetupInvalidConfig(t *testing.T) {
	t.Setenv("FOODORDER_STORAGE_DRIVER", "cassandra")

	_, _, err := setup()
	require.ErrorContains(t, err, "unsupported storage driver")
}
