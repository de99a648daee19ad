package grid

import "math"

// EPSG:3832, the PDC Mercator projection the Pacific grid is defined on.
// Closed-form ellipsoidal Mercator with the central meridian at 150 E.
const (
	SRID = 3832

	centralMeridian = 150.0

	semiMajor    = 6378137.0
	eccentricity = 0.0818191908426215
)

// Forward projects lon/lat degrees to EPSG:3832 meters. Longitudes are
// wrapped so that the Pacific is continuous across the antimeridian.
func Forward(lon, lat float64) (x, y float64) {
	dl := lon - centralMeridian
	for dl > 180 {
		dl -= 360
	}
	for dl < -180 {
		dl += 360
	}

	phi := lat * math.Pi / 180
	es := eccentricity * math.Sin(phi)
	con := math.Pow((1-es)/(1+es), eccentricity/2)

	x = semiMajor * dl * math.Pi / 180
	y = semiMajor * math.Log(math.Tan(math.Pi/4+phi/2)*con)

	return x, y
}

// Inverse projects EPSG:3832 meters back to lon/lat degrees.
func Inverse(x, y float64) (lon, lat float64) {
	lon = centralMeridian + x/semiMajor*180/math.Pi
	if lon > 180 {
		lon -= 360
	}

	t := math.Exp(-y / semiMajor)
	phi := math.Pi/2 - 2*math.Atan(t)

	// converges in a handful of rounds for any sane latitude
	for i := 0; i < 10; i++ {
		es := eccentricity * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), eccentricity/2))

		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}

	return lon, phi * 180 / math.Pi
}
