// Package astro provides the sidereal time and coordinate math used to
// estimate target visibility from the telescope site.
package astro

import (
	"math"
	"time"
)

const (
	// j2000 is the Julian date of the J2000.0 epoch.
	j2000 = 2451545.0

	// unixEpochJD is the Julian date of the Unix epoch.
	unixEpochJD = 2440587.5

	degPerHour = 15.0
)

// JulianDate converts a time to its Julian date.
func JulianDate(t time.Time) float64 {
	return float64(t.UnixMilli())/86400000.0 + unixEpochJD
}

// GMST returns the Greenwich Mean Sidereal Time in degrees, normalized
// to [0, 360).
func GMST(t time.Time) float64 {
	jd := JulianDate(t)
	d := jd - j2000
	T := d / 36525.0

	gmst := 280.46061837 + 360.98564736629*d + 0.000387933*T*T - T*T*T/38710000.0
	return normalizeDegrees(gmst)
}

// LST returns the Local Sidereal Time in hours (0-24) for the given
// longitude in degrees (east positive).
func LST(t time.Time, longitude float64) float64 {
	lst := normalizeDegrees(GMST(t) + longitude)
	return lst / degPerHour
}

// Zenith returns the RA/DEC (degrees) of the point directly overhead for
// an observer at the given site. The zenith RA equals the LST and its
// DEC equals the observer latitude.
func Zenith(t time.Time, latitude, longitude float64) (ra, dec float64) {
	return LST(t, longitude) * degPerHour, latitude
}

// Altitude computes the altitude in degrees of a target at ra/dec
// (degrees) seen from latitude/longitude (degrees) at time t.
func Altitude(t time.Time, ra, dec, latitude, longitude float64) float64 {
	lstDeg := LST(t, longitude) * degPerHour
	ha := lstDeg - ra

	decRad := dec * math.Pi / 180
	latRad := latitude * math.Pi / 180
	haRad := ha * math.Pi / 180

	sinAlt := math.Sin(decRad)*math.Sin(latRad) + math.Cos(decRad)*math.Cos(latRad)*math.Cos(haRad)
	if sinAlt > 1 {
		sinAlt = 1
	} else if sinAlt < -1 {
		sinAlt = -1
	}
	return math.Asin(sinAlt) * 180 / math.Pi
}

// AngularSeparation returns the great-circle separation in degrees
// between two RA/DEC pairs given in degrees.
func AngularSeparation(ra1, dec1, ra2, dec2 float64) float64 {
	toRad := math.Pi / 180

	d1 := dec1 * toRad
	d2 := dec2 * toRad
	dra := (ra1 - ra2) * toRad

	cosSep := math.Sin(d1)*math.Sin(d2) + math.Cos(d1)*math.Cos(d2)*math.Cos(dra)
	// Clamp against rounding before taking the arccosine.
	if cosSep > 1 {
		cosSep = 1
	} else if cosSep < -1 {
		cosSep = -1
	}
	return math.Acos(cosSep) / toRad
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
