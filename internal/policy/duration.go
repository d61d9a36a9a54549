/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package policy

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidDuration reports a lifetime string that does not match the
// <number><unit> grammar. Callers should match it with errors.Is.
var ErrInvalidDuration = errors.New("invalid duration")

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = 365 * day
)

// ParseLifetime parses a compact lifetime such as "48h", "7d", "2w" or "1y"
// into a duration. The grammar is strict: one or more digits followed by
// exactly one of the unit characters h, d, w or y. No whitespace, signs,
// decimals or case variants are accepted, and the numeric part must be
// positive. Parsing is pure; it performs no I/O and has no side effects.
func ParseLifetime(value string) (time.Duration, error) {
	if len(value) < 2 {
		return 0, fmt.Errorf("%w: %q (expected <number><unit> where unit is h/d/w/y, e.g. \"7d\")", ErrInvalidDuration, value)
	}

	digits, unit := value[:len(value)-1], value[len(value)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("%w: %q (expected <number><unit> where unit is h/d/w/y, e.g. \"7d\")", ErrInvalidDuration, value)
		}
	}

	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q (numeric part out of range)", ErrInvalidDuration, value)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %q (lifetime must be positive)", ErrInvalidDuration, value)
	}

	switch unit {
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * day, nil
	case 'w':
		return time.Duration(n) * week, nil
	case 'y':
		return time.Duration(n) * year, nil
	default:
		return 0, fmt.Errorf("%w: %q (unsupported unit %q, expected h/d/w/y)", ErrInvalidDuration, value, string(unit))
	}
}
