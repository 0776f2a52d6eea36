package chips

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamesmcclain/chips/internal/raster"
)

func validConfig() Config {
	return Config{
		N:           2,
		M:           4,
		ImageryPath: "imagery",
		ImageryType: raster.Byte,
		Mode:        Training,
		WindowSize:  10,
		Bands:       []int{1},
	}
}

func TestConfigValidateAccepts(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.validate())
}

func TestConfigValidateRejectsZeroN(t *testing.T) {
	cfg := validConfig()
	cfg.N = 0
	var cerr *ConfigError
	require.True(t, errors.As(cfg.validate(), &cerr))
	require.Equal(t, "N", cerr.Field)
}

func TestConfigValidateRejectsZeroM(t *testing.T) {
	cfg := validConfig()
	cfg.M = 0
	require.Error(t, cfg.validate())
}

func TestConfigValidateRejectsZeroWindow(t *testing.T) {
	cfg := validConfig()
	cfg.WindowSize = 0
	require.Error(t, cfg.validate())
}

func TestConfigValidateRejectsEmptyBands(t *testing.T) {
	cfg := validConfig()
	cfg.Bands = nil
	require.Error(t, cfg.validate())
}

func TestConfigValidateRejectsBadMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = Mode(99)
	require.Error(t, cfg.validate())
}

func TestConfigBufferSizes(t *testing.T) {
	cfg := validConfig()
	cfg.Bands = []int{1, 2, 3}
	cfg.WindowSize = 16
	cfg.LabelType = raster.Byte
	cfg.LabelPath = "labels"

	imagerySize, err := cfg.imageryBufSize()
	require.NoError(t, err)
	require.Equal(t, 1*3*16*16, imagerySize)

	labelSize, err := cfg.labelBufSize()
	require.NoError(t, err)
	require.Equal(t, 1*16*16, labelSize)
}
