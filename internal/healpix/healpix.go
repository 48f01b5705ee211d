// Package healpix implements the RING-scheme HEALPix sphere pixelization,
// the subset the focal-plane convolution needs: pixel counts, angular
// resolution, and the angle↔pixel mappings.
//
// Equations follow Górski et al. 2005 (ApJ 622, 759) and mirror the
// reference C implementation, so pixel indices agree with maps produced by
// the standard tooling.
package healpix

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadNside reports an nside that is not a positive power of two.
var ErrBadNside = errors.New("nside must be a positive power of two")

const halfPi = math.Pi / 2.0

// ValidNside reports whether nside is a positive power of two.
func ValidNside(nside int) bool {
	return nside > 0 && nside&(nside-1) == 0
}

// Nside2Npix returns the number of pixels of an nside map: 12·nside².
func Nside2Npix(nside int) (int, error) {
	if !ValidNside(nside) {
		return 0, fmt.Errorf("%w: %d", ErrBadNside, nside)
	}
	return 12 * nside * nside, nil
}

// Npix2Nside returns the nside of a map with npix pixels.
func Npix2Nside(npix int) (int, error) {
	if npix <= 0 || npix%12 != 0 {
		return 0, fmt.Errorf("invalid pixel count %d", npix)
	}
	nside := int(math.Round(math.Sqrt(float64(npix) / 12.0)))
	if n, err := Nside2Npix(nside); err != nil || n != npix {
		return 0, fmt.Errorf("invalid pixel count %d", npix)
	}
	return nside, nil
}

// ResolutionArcmin returns the mean pixel spacing √(4π/npix) in arcminutes.
func ResolutionArcmin(nside int) (float64, error) {
	npix, err := Nside2Npix(nside)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(4.0*math.Pi/float64(npix)) * (180.0 * 60.0 / math.Pi), nil
}

// Ang2Pix returns the RING-scheme pixel containing the direction
// (θ colatitude, φ longitude), radians. θ is clamped to [0, π] and φ wrapped
// into [0, 2π), so slightly out-of-range offsets near the poles land in the
// nearest valid pixel instead of failing.
func Ang2Pix(nside int, theta, phi float64) (int, error) {
	if !ValidNside(nside) {
		return 0, fmt.Errorf("%w: %d", ErrBadNside, nside)
	}
	if theta < 0 {
		theta = 0
	} else if theta > math.Pi {
		theta = math.Pi
	}
	phi = math.Mod(phi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}

	z := math.Cos(theta)
	za := math.Abs(z)
	tt := phi / halfPi // in [0, 4)
	ns := float64(nside)

	if za <= 2.0/3.0 {
		// Equatorial region.
		temp1 := ns * (0.5 + tt)
		temp2 := ns * z * 0.75
		jp := int(temp1 - temp2) // ascending edge line index
		jm := int(temp1 + temp2) // descending edge line index

		ir := nside + 1 + jp - jm // ring number counted from z = 2/3
		kshift := 1 - (ir & 1)    // 1 for even rings

		ip := (jp + jm - nside + kshift + 1) / 2
		ip %= 4 * nside

		ncap := 2 * nside * (nside - 1)
		return ncap + (ir-1)*4*nside + ip, nil
	}

	// Polar caps.
	tp := tt - math.Floor(tt)
	tmp := ns * math.Sqrt(3.0*(1.0-za))
	jp := int(tp * tmp)
	jm := int((1.0 - tp) * tmp)

	ir := jp + jm + 1 // ring number counted from the closest pole
	ip := int(tt * float64(ir))
	ip %= 4 * ir

	if z > 0 {
		return 2*ir*(ir-1) + ip, nil
	}
	npix := 12 * nside * nside
	return npix - 2*ir*(ir+1) + ip, nil
}

// Pix2Ang returns the direction (θ colatitude, φ longitude) of the center of
// a RING-scheme pixel, radians.
func Pix2Ang(nside, ipix int) (theta, phi float64, err error) {
	if !ValidNside(nside) {
		return 0, 0, fmt.Errorf("%w: %d", ErrBadNside, nside)
	}
	npix := 12 * nside * nside
	if ipix < 0 || ipix >= npix {
		return 0, 0, fmt.Errorf("pixel %d out of range for nside %d", ipix, nside)
	}

	ncap := 2 * nside * (nside - 1)
	ns := float64(nside)

	switch {
	case ipix < ncap:
		// North polar cap.
		hip := float64(ipix+1) / 2.0
		fihip := math.Floor(hip)
		iring := int(math.Sqrt(hip-math.Sqrt(fihip))) + 1
		iphi := ipix + 1 - 2*iring*(iring-1)

		theta = math.Acos(1.0 - float64(iring*iring)/(3.0*ns*ns))
		phi = (float64(iphi) - 0.5) * math.Pi / (2.0 * float64(iring))

	case ipix < npix-ncap:
		// Equatorial belt.
		ip := ipix - ncap
		iring := ip/(4*nside) + nside
		iphi := ip%(4*nside) + 1

		// fodd is 1 when ring and nside have opposite parity, else 1/2:
		// consecutive rings are shifted by half a pixel width.
		fodd := 0.5
		if (iring+nside)&1 == 1 {
			fodd = 1.0
		}

		theta = math.Acos((2.0*ns - float64(iring)) * 2.0 / (3.0 * ns))
		phi = (float64(iphi) - fodd) * math.Pi / (2.0 * ns)

	default:
		// South polar cap.
		ip := npix - ipix
		hip := float64(ip) / 2.0
		fihip := math.Floor(hip)
		iring := int(math.Sqrt(hip-math.Sqrt(fihip))) + 1
		iphi := 4*iring + 1 - (ip - 2*iring*(iring-1))

		theta = math.Acos(-1.0 + float64(iring*iring)/(3.0*ns*ns))
		phi = (float64(iphi) - 0.5) * math.Pi / (2.0 * float64(iring))
	}
	return theta, phi, nil
}
