package grid

import (
	"fmt"
	"math"
)

// WGS84 UTM, EPSG:326xx north and 327xx south. Landsat surface reflectance
// scenes are delivered on these grids. Standard transverse Mercator series,
// accurate to well under a pixel across a zone.
const (
	utmScale         = 0.9996
	utmFalseEasting  = 500_000.0
	utmFalseNorthing = 10_000_000.0
)

var (
	e2  = eccentricity * eccentricity
	ep2 = e2 / (1 - e2)
)

func utmZone(srid int) (meridian float64, south bool, ok bool) {
	switch {
	case srid >= 32601 && srid <= 32660:
		return float64(srid-32600)*6 - 183, false, true
	case srid >= 32701 && srid <= 32760:
		return float64(srid-32700)*6 - 183, true, true
	}

	return 0, false, false
}

func utmForward(meridian float64, south bool, lon, lat float64) (x, y float64) {
	dl := lon - meridian
	for dl > 180 {
		dl -= 360
	}
	for dl < -180 {
		dl += 360
	}
	dl *= math.Pi / 180

	phi := lat * math.Pi / 180
	sin, cos := math.Sin(phi), math.Cos(phi)
	tan := sin / cos

	n := semiMajor / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	a := dl * cos

	m := semiMajor * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))

	x = utmScale*n*(a+(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + utmFalseEasting

	y = utmScale * (m + n*tan*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if south {
		y += utmFalseNorthing
	}

	return x, y
}

func utmInverse(meridian float64, south bool, x, y float64) (lon, lat float64) {
	x -= utmFalseEasting
	if south {
		y -= utmFalseNorthing
	}

	m := y / utmScale
	mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	// footpoint latitude
	phi := mu + (3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin, cos := math.Sin(phi), math.Cos(phi)
	tan := sin / cos

	c1 := ep2 * cos * cos
	t1 := tan * tan
	n1 := semiMajor / math.Sqrt(1-e2*sin*sin)
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sin*sin, 1.5)
	d := x / (n1 * utmScale)

	latRad := phi - (n1*tan/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lonRad := meridian*math.Pi/180 + (d-(1+2*t1+c1)*d*d*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cos

	return lonRad * 180 / math.Pi, latRad * 180 / math.Pi
}

// Projector returns a conversion from coordinates in the from CRS into the
// to CRS. EPSG:3832, EPSG:4326 and the WGS84 UTM zones are supported.
func Projector(from, to int) (func(x, y float64) (float64, float64), error) {
	inv, err := toLonLat(from)
	if err != nil {
		return nil, err
	}

	fwd, err := fromLonLat(to)
	if err != nil {
		return nil, err
	}

	return func(x, y float64) (float64, float64) {
		return fwd(inv(x, y))
	}, nil
}

func toLonLat(srid int) (func(x, y float64) (float64, float64), error) {
	if meridian, south, ok := utmZone(srid); ok {
		return func(x, y float64) (float64, float64) {
			return utmInverse(meridian, south, x, y)
		}, nil
	}

	switch srid {
	case SRID:
		return Inverse, nil
	case 4326:
		return func(x, y float64) (float64, float64) { return x, y }, nil
	}

	return nil, fmt.Errorf("no inverse projection for epsg:%d", srid)
}

func fromLonLat(srid int) (func(lon, lat float64) (float64, float64), error) {
	if meridian, south, ok := utmZone(srid); ok {
		return func(lon, lat float64) (float64, float64) {
			return utmForward(meridian, south, lon, lat)
		}, nil
	}

	switch srid {
	case SRID:
		return Forward, nil
	case 4326:
		return func(lon, lat float64) (float64, float64) { return lon, lat }, nil
	}

	return nil, fmt.Errorf("no forward projection for epsg:%d", srid)
}
