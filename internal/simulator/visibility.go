package simulator

import (
	"time"

	"github.com/telescopiosnaescola/argus/pkg/astro"
)

// checkObservable decides whether a coordinate can be observed from the
// site at the given time: the target must be above the minimum altitude
// and within the maximum angular distance from the zenith.
func (s *Server) checkObservable(ra, dec float64, at time.Time) (allowed bool, distance float64) {
	zenithRA, zenithDEC := astro.Zenith(at, s.config.SiteLatitude, s.config.SiteLongitude)
	distance = astro.AngularSeparation(ra, dec, zenithRA, zenithDEC)

	alt := astro.Altitude(at, ra, dec, s.config.SiteLatitude, s.config.SiteLongitude)
	if alt < s.config.MinAltitude {
		return false, distance
	}
	if distance > s.config.MaxZenithDistance {
		return false, distance
	}
	return true, distance
}

// presavedObject is an entry of the built-in bright object catalog.
type presavedObject struct {
	Name string
	RA   float64
	DEC  float64
}

// presavedCatalog is a small list of showpiece targets offered to
// schools when they plan an observation.
var presavedCatalog = []presavedObject{
	{"M42 - Orion Nebula", 83.822, -5.391},
	{"M45 - Pleiades", 56.75, 24.117},
	{"M31 - Andromeda Galaxy", 10.685, 41.269},
	{"NGC 104 - 47 Tucanae", 6.024, -72.081},
	{"NGC 3372 - Carina Nebula", 161.265, -59.684},
	{"M8 - Lagoon Nebula", 270.921, -24.387},
	{"M20 - Trifid Nebula", 270.63, -22.972},
	{"M104 - Sombrero Galaxy", 189.998, -11.623},
	{"Omega Centauri", 201.697, -47.48},
	{"M17 - Omega Nebula", 275.196, -16.172},
}
