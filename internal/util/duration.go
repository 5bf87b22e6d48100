package util

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("invalid config")

var ttlUnits = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 60 * 60,
	'd': 24 * 60 * 60,
}

// ParseTTL converts a "<integer><unit>" spec such as "15m" or "7d" into seconds.
func ParseTTL(spec string) (int64, error) {
	s := strings.TrimSpace(spec)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, spec)
	}

	mult, ok := ttlUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit in duration %q", ErrInvalidConfig, spec)
	}

	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad magnitude in duration %q", ErrInvalidConfig, spec)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: duration %q must be positive", ErrInvalidConfig, spec)
	}
	// the result must also fit in a time.Duration
	if n > math.MaxInt64/int64(time.Second)/mult {
		return 0, fmt.Errorf("%w: duration %q is out of range", ErrInvalidConfig, spec)
	}

	return n * mult, nil
}

func ParseTTLDuration(spec string) (time.Duration, error) {
	secs, err := ParseTTL(spec)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}
