package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/nasfanctl/internal/chip"
	"codeberg.org/mutker/nasfanctl/internal/config"
	"codeberg.org/mutker/nasfanctl/internal/errors"
	"codeberg.org/mutker/nasfanctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "nasfanctl dev\n", out)
}

func useConfig(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nasfanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("NASFANCTL_CONFIG", path)
}

func TestIdentifyDryRun(t *testing.T) {
	useConfig(t, "")

	out, err := execute(t, "identify", "--dry_run")
	require.NoError(t, err)
	assert.Equal(t, "chip: IT8613E (0x8613, supported) at port 0x2e\n", out)
}

func TestIdentifyReadsConfigFile(t *testing.T) {
	useConfig(t, "chip_port = 78\ndry_run = true\n")

	out, err := execute(t, "identify")
	require.NoError(t, err)
	assert.Equal(t, "chip: IT8613E (0x8613, supported) at port 0x4e\n", out)
}

func TestIdentifyRejectsOutOfRangePort(t *testing.T) {
	useConfig(t, "")

	for _, port := range []string{"-1", "65582"} {
		t.Run(port, func(t *testing.T) {
			_, err := execute(t, "identify", "--dry_run", "--chip_port="+port)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
		})
	}
}

func TestOpenChipDryRun(t *testing.T) {
	fans, err := openChip(&config.Config{
		ChipPort: config.DefaultChipPort,
		DryRun:   true,
		PwmInit:  96,
	}, logger.Nop())
	require.NoError(t, err)
	defer fans.Close()

	assert.Equal(t, 96, fans.Effort())
	assert.True(t, fans.Identity().Known())

	require.NoError(t, fans.SetEffort(200))
	assert.Equal(t, 200, fans.Effort())
}

func TestOpenChipRejectsInitialEffort(t *testing.T) {
	_, err := openChip(&config.Config{
		ChipPort: config.DefaultChipPort,
		DryRun:   true,
		PwmInit:  300,
	}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, chip.ErrInvalidEffort))
}

func TestRunRequiresDrives(t *testing.T) {
	t.Setenv("NASFANCTL_CONFIG", "")
	t.Setenv("NASFANCTL_DRIVE_LIST", "")

	_, err := execute(t, "--dry_run", "--config", "/nonexistent/nasfanctl.toml")
	require.Error(t, err)
}

func TestUnknownFlag(t *testing.T) {
	_, err := execute(t, "--no-such-flag")
	require.Error(t, err)
}
