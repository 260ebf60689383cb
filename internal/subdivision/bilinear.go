// Package subdivision derives lot polygons from zone boundaries and assigns
// each lot a deterministic status and price.
package subdivision

import (
	"github.com/paulmach/orb"
	"github.com/stwalsh4118/parcela/internal/models"
)

// Bilerp maps (u, v) in the unit square onto the quadrilateral described by
// corners (TL, TR, BR, BL). It returns the corners exactly at (0,0), (1,0),
// (1,1) and (0,1). Corners must already be validated.
func Bilerp(corners models.Corners, u, v float64) orb.Point {
	tl, tr, br, bl := corners.TL(), corners.TR(), corners.BR(), corners.BL()

	wTL := (1 - u) * (1 - v)
	wTR := u * (1 - v)
	wBR := u * v
	wBL := (1 - u) * v

	return orb.Point{
		wTL*tl[0] + wTR*tr[0] + wBR*br[0] + wBL*bl[0],
		wTL*tl[1] + wTR*tr[1] + wBR*br[1] + wBL*bl[1],
	}
}
