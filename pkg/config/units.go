package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads "20ms", "30s" or "7d" from YAML.
type Duration time.Duration

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration accepts everything time.ParseDuration does plus day (d) and
// week (w) terms, which may be mixed with the standard units ("2d2h").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}

	// Rewrite every d/w term as hours and let the standard parser do the rest.
	var b strings.Builder
	for rest := s; rest != ""; {
		num, unit, tail, err := splitTerm(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		switch unit {
		case "d", "w":
			val, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: bad number %q", s, num)
			}
			hours := val * 24
			if unit == "w" {
				hours *= 7
			}
			b.WriteString(strconv.FormatFloat(hours, 'f', -1, 64) + "h")
		default:
			b.WriteString(num + unit)
		}
		rest = tail
	}
	return time.ParseDuration(b.String())
}

// splitTerm cuts the leading number+unit term off s.
func splitTerm(s string) (num, unit, rest string, err error) {
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' })
	if i <= 0 {
		return "", "", "", fmt.Errorf("expected number at %q", s)
	}
	j := strings.IndexFunc(s[i:], func(r rune) bool { return unicode.IsDigit(r) || r == '.' })
	if j < 0 {
		j = len(s) - i
	}
	unit = s[i : i+j]
	if unit == "" || strings.ContainsFunc(unit, unicode.IsSpace) {
		return "", "", "", fmt.Errorf("bad unit %q", unit)
	}
	return s[:i], unit, s[i+j:], nil
}

// Distance is a length in meters that reads "500m", "1.5km" or a bare number
// from YAML.
type Distance float64

func (d Distance) Meters() float64 { return float64(d) }

func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err == nil {
		*d = Distance(f)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	m, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(m)
	return nil
}

func (d Distance) MarshalYAML() (interface{}, error) {
	return strconv.FormatFloat(float64(d), 'f', -1, 64) + "m", nil
}

// distanceUnits is ordered so that longer suffixes are tried before "m".
var distanceUnits = []struct {
	suffix string
	meters float64
}{
	{"km", 1000},
	{"nm", 1852},
	{"cm", 0.01},
	{"ft", 0.3048},
	{"m", 1},
}

// ParseDistance converts a length to meters. Supported suffixes are km, nm,
// cm, ft and m; a bare number is meters.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	num, mult := s, 1.0
	for _, u := range distanceUnits {
		if strings.HasSuffix(s, u.suffix) {
			num, mult = strings.TrimSuffix(s, u.suffix), u.meters
			break
		}
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance %q: %w", s, err)
	}
	return val * mult, nil
}
