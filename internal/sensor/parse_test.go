package sensor

import (
	"testing"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smartctlOutput = `smartctl 7.3 2022-02-28 r5338 [x86_64-linux-6.1.0] (local build)
Copyright (C) 2002-22, Bruce Allen, Christian Franke, www.smartmontools.org

=== START OF READ SMART DATA SECTION ===
SMART Attributes Data Structure revision number: 16
Vendor Specific SMART Attributes with Thresholds:
ID# ATTRIBUTE_NAME          FLAG     VALUE WORST THRESH TYPE      UPDATED  WHEN_FAILED RAW_VALUE
  1 Raw_Read_Error_Rate     0x002f   200   200   051    Pre-fail  Always       -       0
  9 Power_On_Hours          0x0032   071   071   000    Old_age   Always       -       21453
190 Airflow_Temperature_Cel 0x0022   064   052   040    Old_age   Always       -       36
194 Temperature_Celsius     0x0022   114   102   000    Old_age   Always       -       36 (Min/Max 21/48)
199 UDMA_CRC_Error_Count    0x0032   200   200   000    Old_age   Always       -       0
`

const sensorsOutput = `coretemp-isa-0000
Adapter: ISA adapter
Package id 0:  +45.0°C  (high = +80.0°C, crit = +100.0°C)
Core 0:        +43.0°C  (high = +80.0°C, crit = +100.0°C)
Core 1:        +44.0°C  (high = +80.0°C, crit = +100.0°C)

acpitz-acpi-0
Adapter: ACPI interface
temp1:        +27.8°C  (crit = +105.0°C)
`

func TestParseSmartctl(t *testing.T) {
	temp, err := parseSmartctl([]byte(smartctlOutput))

	require.NoError(t, err)
	assert.Equal(t, 36, temp)
}

func TestParseSmartctl_Missing(t *testing.T) {
	_, err := parseSmartctl([]byte("Smartctl open device: /dev/sdz failed: No such device\n"))

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrNotFound))
}

func TestParseSmartctl_Garbage(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"short row", "194 Temperature_Celsius 0x0022 114\n"},
		{"non numeric raw", "194 Temperature_Celsius     0x0022   114   102   000    Old_age   Always       -       hot\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSmartctl([]byte(tt.out))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, ErrParseFailed))
		})
	}
}

func TestParseSensors(t *testing.T) {
	temp, err := parseSensors([]byte(sensorsOutput))

	require.NoError(t, err)
	assert.Equal(t, 45, temp)
}

func TestParseSensors_CaseInsensitive(t *testing.T) {
	temp, err := parseSensors([]byte("PACKAGE ID 1:  +61.9°C  (high = +84.0°C)\n"))

	require.NoError(t, err)
	assert.Equal(t, 61, temp)
}

func TestParseSensors_Missing(t *testing.T) {
	_, err := parseSensors([]byte("acpitz-acpi-0\ntemp1:        +27.8°C\n"))

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrNotFound))
}
