package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"go.ngs.io/rectify/internal/adapter/store/files"
	"go.ngs.io/rectify/internal/rectify"
)

var geomCmd = &cobra.Command{
	Use:   "geom [IN]",
	Short: "Show the coordinates of a dataset file and its inferred output grid",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return errors.New("input filename is required")
		}
		if _, err := os.Stat(args[0]); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("input file '%s' does not exist", args[0])
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(xyNames) != 0 && len(xyNames) != 2 {
			return errors.New("--xy-names needs exactly two names")
		}
		return geom(args[0])
	},
	SilenceUsage: true,
}

func init() {
	geomCmd.Flags().StringSliceVar(&varNames, "vars", nil, "variables to check against the coordinate grid")
	geomCmd.Flags().StringSliceVar(&xyNames, "xy-names", nil, "x and y coordinate variable names, e.g. lon,lat")
	geomCmd.Flags().Float64Var(&oversampling, "oversampling", 1, "oversampling of the inferred resolution")
	geomCmd.Flags().IntVar(&denomX, "denom-x", 1, "round output width up to a multiple of this")
	geomCmd.Flags().IntVar(&denomY, "denom-y", 1, "round output height up to a multiple of this")
}

func geom(infilename string) error {
	src, err := files.Read(infilename)
	if err != nil {
		return err
	}

	var xName, yName string
	if len(xyNames) == 2 {
		xName, yName = xyNames[0], xyNames[1]
	}
	geomOpts := rectify.DefaultGeomOptions()
	geomOpts.Oversampling = oversampling
	geomOpts.DenomX = denomX
	geomOpts.DenomY = denomY

	p, err := rectify.Prepare(src, rectify.Options{
		VarNames:    varNames,
		XName:       xName,
		YName:       yName,
		GeomOptions: geomOpts,
	})
	if err != nil {
		return err
	}

	gc := p.GeoCoding
	dimY, dimX := gc.Dims()
	names := make([]string, len(p.Vars))
	for i, v := range p.Vars {
		names[i] = v.Name
	}
	b := p.Geom.BBox()

	fmt.Printf("Coordinates:     %s(%s, %s), %s(%s, %s)\n", gc.XName, dimY, dimX, gc.YName, dimY, dimX)
	fmt.Printf("Source size:     %d x %d\n", gc.Width(), gc.Height())
	fmt.Printf("Normalized lon:  %v\n", gc.IsLonNormalized)
	fmt.Printf("Variables:       %s\n", strings.Join(names, ", "))
	fmt.Printf("Output size:     %d x %d\n", p.Geom.Width, p.Geom.Height)
	fmt.Printf("Output res:      %g\n", p.Geom.Res)
	fmt.Printf("Output bbox:     %g, %g, %g, %g\n", b.XMin, b.YMin, b.XMax, b.YMax)
	if p.Geom.CrossesAntimeridian() {
		fmt.Println("                 (crosses the antimeridian)")
	}
	return nil
}
