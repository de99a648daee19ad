package lister

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBool reads the "True"/"False" strings the workflow templates pass
// for boolean inputs. An empty value is false.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false", "":
		return false, nil
	}

	return false, fmt.Errorf("%q is not True or False", s)
}

// ParseYears expands "2024" or an inclusive range "2019-2024".
func ParseYears(s string) ([]string, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")

	switch len(parts) {
	case 1:
		if _, err := strconv.Atoi(parts[0]); err != nil {
			return nil, fmt.Errorf("%q is not a year", s)
		}

		return []string{parts[0]}, nil

	case 2:
		from, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%q is not a year range", s)
		}

		to, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%q is not a year range", s)
		}

		if to < from {
			return nil, fmt.Errorf("year range %q is reversed", s)
		}

		years := make([]string, 0, to-from+1)
		for y := from; y <= to; y++ {
			years = append(years, strconv.Itoa(y))
		}

		return years, nil
	}

	return nil, fmt.Errorf("%q is not a valid value for --years", s)
}
