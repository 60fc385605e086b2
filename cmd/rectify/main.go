// Command rectify resamples curvilinear NetCDF and CSV rasters onto regular
// grids.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
