// Command swath-generator writes synthetic curvilinear swath files for
// exercising the rectifier.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"go.ngs.io/rectify/internal/adapter/store/netcdf"
	"go.ngs.io/rectify/internal/domain"
)

// Swath defines a rotated scan grid around a centre point.
type Swath struct {
	Width     int
	Height    int
	CenterLon float64
	CenterLat float64
	Step      float64 // degrees between neighbouring samples
	Angle     float64 // degrees, counter-clockwise
	Times     int     // leading time steps of the 3-D variable
	GapEvery  int     // every n-th scan line has no coordinates, 0 for none
}

func main() {
	// Command line flags
	out := flag.String("out", "./data/swath.nc", "Output NetCDF file")
	preset := flag.String("preset", "pacific", "Preset: pacific (crosses the antimeridian), europe, or custom")
	width := flag.Int("width", 200, "Samples per scan line")
	height := flag.Int("height", 150, "Scan lines")
	centerLon := flag.Float64("center-lon", 0, "Centre longitude (custom preset)")
	centerLat := flag.Float64("center-lat", 0, "Centre latitude (custom preset)")
	step := flag.Float64("step", 0.05, "Sample spacing in degrees")
	angle := flag.Float64("angle", 12, "Scan rotation in degrees")
	times := flag.Int("times", 3, "Time steps of the 3-D variable")
	gapEvery := flag.Int("gap-every", 0, "Blank the coordinates of every n-th scan line")

	flag.Parse()

	swath := Swath{
		Width:    *width,
		Height:   *height,
		Step:     *step,
		Angle:    *angle,
		Times:    *times,
		GapEvery: *gapEvery,
	}
	switch *preset {
	case "pacific":
		swath.CenterLon, swath.CenterLat = 179.5, -17.0
	case "europe":
		swath.CenterLon, swath.CenterLat = 10.0, 54.0
	case "custom":
		swath.CenterLon, swath.CenterLat = *centerLon, *centerLat
	default:
		log.Fatalf("Unknown preset: %s (use pacific, europe, or custom)", *preset)
	}
	if swath.Width < 2 || swath.Height < 2 || swath.Times < 1 || !(swath.Step > 0) {
		log.Fatalf("Invalid swath size %dx%dx%d or step %g", swath.Times, swath.Height, swath.Width, swath.Step)
	}

	log.Printf("Generating %dx%d swath around (%.2f, %.2f), step %.3f°, rotated %.1f°",
		swath.Width, swath.Height, swath.CenterLon, swath.CenterLat, swath.Step, swath.Angle)

	ds, err := generate(swath)
	if err != nil {
		log.Fatalf("Failed to generate swath: %v", err)
	}

	// Create output directory
	if dir := filepath.Dir(*out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}
	if err := netcdf.WriteFile(*out, ds); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}

	bytesPerFile := swath.Width * swath.Height * (4 + swath.Times) * 8
	log.Printf("Wrote %s (~%.1f MB)", *out, float64(bytesPerFile)/1024/1024)
}

// generate builds the swath dataset: 2-D lon/lat, a 2-D sst field and a
// 3-D chl field over (time, row, col).
func generate(s Swath) (*domain.Dataset, error) {
	n := s.Width * s.Height
	lon := make([]float64, n)
	lat := make([]float64, n)
	sst := make([]float64, n)
	chl := make([]float64, s.Times*n)

	sin, cos := math.Sincos(s.Angle * math.Pi / 180.0)
	for j := 0; j < s.Height; j++ {
		gap := s.GapEvery > 0 && j > 0 && j%s.GapEvery == 0
		for i := 0; i < s.Width; i++ {
			k := j*s.Width + i

			// Offsets from the centre in grid units, rotated.
			u := (float64(i) - float64(s.Width-1)/2) * s.Step
			v := (float64(j) - float64(s.Height-1)/2) * s.Step
			x := s.CenterLon + u*cos - v*sin
			y := s.CenterLat + u*sin + v*cos

			// Wrap into [-180, 180).
			x = math.Mod(x+180.0, 360.0)
			if x < 0 {
				x += 360.0
			}
			x -= 180.0

			if gap {
				lon[k], lat[k] = math.NaN(), math.NaN()
			} else {
				lon[k], lat[k] = x, y
			}

			// Smooth fields in sample space so they stay continuous across 180°.
			sst[k] = 20.0 +
				8.0*math.Cos(y*math.Pi/60.0) +
				0.5*math.Sin(u*math.Pi/2.0) +
				0.3*math.Cos(v*math.Pi/3.0)
			for t := 0; t < s.Times; t++ {
				chl[t*n+k] = math.Exp(-0.5*(u*u+v*v)/(1.0+float64(t))) + 0.05*float64(t)
			}
		}
	}

	ds := domain.NewDataset()
	ds.Attrs["title"] = "synthetic swath"
	ds.Attrs["source"] = "swath-generator"
	ds.Attrs["history"] = fmt.Sprintf("generated %dx%d around %.2f,%.2f", s.Width, s.Height, s.CenterLon, s.CenterLat)

	grid := []string{"row", "col"}
	shape := []int{s.Height, s.Width}
	lonArr, err := domain.NewArray(grid, shape, lon)
	if err != nil {
		return nil, err
	}
	lonArr.Attrs = map[string]any{"units": "degrees_east", "standard_name": "longitude"}
	latArr, err := domain.NewArray(grid, shape, lat)
	if err != nil {
		return nil, err
	}
	latArr.Attrs = map[string]any{"units": "degrees_north", "standard_name": "latitude"}
	sstArr, err := domain.NewArray(grid, shape, sst)
	if err != nil {
		return nil, err
	}
	sstArr.Attrs = map[string]any{"units": "degC", "long_name": "sea surface temperature"}
	chlArr, err := domain.NewArray([]string{"time", "row", "col"}, []int{s.Times, s.Height, s.Width}, chl)
	if err != nil {
		return nil, err
	}
	chlArr.Attrs = map[string]any{"units": "mg m-3", "long_name": "chlorophyll concentration"}

	ds.SetCoord("lon", lonArr)
	ds.SetCoord("lat", latArr)
	ds.Set("sst", sstArr)
	ds.Set("chl", chlArr)
	return ds, nil
}
