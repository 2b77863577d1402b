package sensor

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/nasfanctl/internal/errors"
)

const smartTemperatureAttr = "Temperature_Celsius"

// rawValueField is the index of RAW_VALUE in a `smartctl -A` attribute row.
const rawValueField = 9

// parseSmartctl extracts the raw value of the first Temperature_Celsius
// attribute from `smartctl -A` output.
func parseSmartctl(out []byte) (int, error) {
	errFactory := errors.New()

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, smartTemperatureAttr) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) <= rawValueField {
			return 0, errFactory.WithData(ErrParseFailed, line)
		}

		temp, err := strconv.Atoi(fields[rawValueField])
		if err != nil {
			return 0, errFactory.Wrap(ErrParseFailed, err)
		}

		return temp, nil
	}

	return 0, errFactory.WithData(ErrNotFound, smartTemperatureAttr)
}

var packageTempRe = regexp.MustCompile(`(?i)^\s*package id[^:]*:\s*\+?(-?\d+)`)

// parseSensors extracts the integer part of the first "Package id" reading
// from lm-sensors output.
func parseSensors(out []byte) (int, error) {
	errFactory := errors.New()

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := packageTempRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		temp, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, errFactory.Wrap(ErrParseFailed, err)
		}

		return temp, nil
	}

	return 0, errFactory.WithData(ErrNotFound, "Package id")
}
