package rectify

import (
	"fmt"
	"math"

	"go.ngs.io/rectify/internal/domain"
)

// IsCrossingAntimeridian reports whether any two neighbouring cells of the
// 2-D longitude grid differ by more than 180° along either axis.
func IsCrossingAntimeridian(lon *domain.Array) bool {
	h, w := lon.Height(), lon.Width()
	v := lon.Data
	for j := 0; j < h; j++ {
		row := v[j*w : (j+1)*w]
		for i := 1; i < w; i++ {
			if math.Abs(row[i]-row[i-1]) > 180.0 {
				return true
			}
		}
	}
	for j := 1; j < h; j++ {
		prev := v[(j-1)*w : j*w]
		row := v[j*w : (j+1)*w]
		for i := 0; i < w; i++ {
			if math.Abs(row[i]-prev[i]) > 180.0 {
				return true
			}
		}
	}
	return false
}

// NormalizeLon removes an antimeridian discontinuity from a 2-D longitude
// grid by shifting negative longitudes into [0, 360).
//
// normalized is true if the returned grid is expressed in the shifted
// 0–360° form, either because a crossing was removed or because lon already
// held longitudes beyond 180°. The input is never modified. A discontinuity
// that survives the shift is reported as ErrUnsupported.
func NormalizeLon(lon *domain.Array) (out *domain.Array, normalized bool, err error) {
	if !IsCrossingAntimeridian(lon) {
		_, hi, ok := lon.MinMax()
		return lon, ok && hi > 180.0, nil
	}
	out = lon.Clone()
	for i, v := range out.Data {
		if v < 0.0 {
			out.Data[i] = v + 360.0
		}
	}
	if IsCrossingAntimeridian(out) {
		return nil, false, fmt.Errorf("%w: cannot account for longitudinal antimeridian crossing", domain.ErrUnsupported)
	}
	return out, true, nil
}

// DenormalizeLon maps longitudes above 180° back into [-180, 180] in place
// and returns values.
func DenormalizeLon(values []float64) []float64 {
	for i, v := range values {
		if v > 180.0 {
			values[i] = v - 360.0
		}
	}
	return values
}
