package astro

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCoordinatePair splits a raw coordinate input into its RA and DEC
// parts. The portal convention is RA and DEC separated by exactly two
// spaces ("10.5  20.3"); anything else is rejected.
func ParseCoordinatePair(input string) (ra, dec string, err error) {
	parts := strings.Split(input, "  ")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("coordinates must be RA and DEC separated by two spaces, got %q", input)
	}
	return parts[0], parts[1], nil
}

// ParseCoordinateDegrees parses a coordinate pair and converts both
// values to degrees.
func ParseCoordinateDegrees(input string) (ra, dec float64, err error) {
	raStr, decStr, err := ParseCoordinatePair(input)
	if err != nil {
		return 0, 0, err
	}

	ra, err = strconv.ParseFloat(strings.TrimSpace(raStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid RA %q: %w", raStr, err)
	}
	dec, err = strconv.ParseFloat(strings.TrimSpace(decStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid DEC %q: %w", decStr, err)
	}
	return ra, dec, nil
}

// FormatRA renders a right ascension in decimal degrees, normalized into
// [0, 360), with six decimal places.
func FormatRA(ra float64) string {
	for ra < 0 {
		ra += 360
	}
	for ra >= 360 {
		ra -= 360
	}
	return strconv.FormatFloat(ra, 'f', 6, 64)
}

// FormatDEC renders a declination in decimal degrees with six decimal
// places.
func FormatDEC(dec float64) string {
	return strconv.FormatFloat(dec, 'f', 6, 64)
}

// Sexagesimal formats an RA/DEC pair (degrees) in the long form used by
// the telescope instruction scripts, e.g.
// "12h 30m 0.00s +30d 45m 45.00s".
func Sexagesimal(raDeg, decDeg float64) string {
	raHours := raDeg / degPerHour
	raH := int(raHours)
	raM := int((raHours - float64(raH)) * 60)
	raS := (raHours - float64(raH) - float64(raM)/60) * 3600

	sign := "+"
	if decDeg < 0 {
		sign = "-"
		decDeg = -decDeg
	}
	decD := int(decDeg)
	decM := int((decDeg - float64(decD)) * 60)
	decS := (decDeg - float64(decD) - float64(decM)/60) * 3600

	return fmt.Sprintf("%dh %dm %.2fs %s%dd %dm %.2fs", raH, raM, raS, sign, decD, decM, decS)
}

// SexagesimalSimplified formats an RA/DEC pair (degrees) in the compact
// decimal-hours form, e.g. "12.50000h +30.75000d".
func SexagesimalSimplified(raDeg, decDeg float64) string {
	raHours := raDeg / degPerHour

	sign := "+"
	if decDeg < 0 {
		sign = "-"
		decDeg = -decDeg
	}
	return fmt.Sprintf("%.5fh %s%.5fd", raHours, sign, decDeg)
}
