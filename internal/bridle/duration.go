package bridle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	retentionPattern = regexp.MustCompile(`^(\d+[dhms])+$`)
	retentionPart    = regexp.MustCompile(`(\d+)([dhms])`)
)

// ParseRetentionInterval converts strings like "30d", "12h" or "1d12h" into a
// time.Duration. Units are days, hours, minutes and seconds. Values that do not
// fit in a time.Duration are rejected.
func ParseRetentionInterval(input string) (time.Duration, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	if !retentionPattern.MatchString(value) {
		return 0, fmt.Errorf("invalid duration format %q (expected e.g. 30d, 12h, 1d12h)", input)
	}

	total := time.Duration(0)
	for _, parts := range retentionPart.FindAllStringSubmatch(value, -1) {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration number: %w", err)
		}
		var unit time.Duration
		switch parts[2] {
		case "d":
			unit = 24 * time.Hour
		case "h":
			unit = time.Hour
		case "m":
			unit = time.Minute
		default:
			unit = time.Second
		}
		if int64(n) > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("duration %q is out of range", input)
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, fmt.Errorf("duration %q is out of range", input)
		}
		total += part
	}
	return total, nil
}
