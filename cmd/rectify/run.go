package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"

	"go.ngs.io/rectify/internal/adapter/store/files"
	"go.ngs.io/rectify/internal/domain"
	"go.ngs.io/rectify/internal/pkg/config"
	"go.ngs.io/rectify/internal/rectify"
)

var (
	varNames     []string
	xyNames      []string
	bbox         []float64
	res          float64
	oversampling float64
	denomX       int
	denomY       int
	delta        float64
	fill         float64
	fractional   bool
	numWorkers   int
	requestFile  string
)

var runCmd = &cobra.Command{
	Use:   "run [IN] [OUT]",
	Short: "Rectify a dataset file onto a regular grid",
	Long: `Rectify a dataset file onto a regular grid.

IN and OUT may also be given as input and output in a request file (--config).
With --fractional the source pixel indices are written as src_i and src_j.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(cmd, args)
		if err != nil {
			return err
		}
		if req.Input == "" || req.Output == "" {
			return errors.New("input and output filenames are required")
		}
		if _, err := os.Stat(req.Input); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("input file '%s' does not exist", req.Input)
		}
		if outDir := filepath.Dir(req.Output); outDir != "" {
			if _, err := os.Stat(outDir); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("output directory '%s' does not exist", outDir)
			}
		}
		if _, err := files.FormatOf(req.Output); err != nil {
			return err
		}
		if req.Workers < 1 {
			req.Workers = 1
		}

		return run(cmd.Context(), req)
	},
	SilenceUsage: true,
}

func init() {
	runCmd.Flags().StringSliceVar(&varNames, "vars", nil, "variables to rectify (default: all on the coordinate grid)")
	runCmd.Flags().StringSliceVar(&xyNames, "xy-names", nil, "x and y coordinate variable names, e.g. lon,lat")
	runCmd.Flags().Float64SliceVar(&bbox, "bbox", nil, "output bounding box x_min,y_min,x_max,y_max")
	runCmd.Flags().Float64Var(&res, "res", 0, "output resolution (required with --bbox)")
	runCmd.Flags().Float64Var(&oversampling, "oversampling", 1, "oversampling of the inferred resolution")
	runCmd.Flags().IntVar(&denomX, "denom-x", 1, "round output width up to a multiple of this")
	runCmd.Flags().IntVar(&denomY, "denom-y", 1, "round output height up to a multiple of this")
	runCmd.Flags().Float64Var(&delta, "delta", rectify.DefaultDelta, "point-in-triangle tolerance")
	runCmd.Flags().Float64Var(&fill, "fill", math.NaN(), "value for output pixels outside the source")
	runCmd.Flags().BoolVar(&fractional, "fractional", false, "write fractional source pixel indices")
	runCmd.Flags().IntVarP(&numWorkers, "workers", "w", 4, "number of goroutines per variable")
	runCmd.Flags().StringVarP(&requestFile, "config", "c", "", "YAML or JSON request file")
}

// buildRequest merges the request file with positional arguments and any
// flags set on the command line, which take precedence.
func buildRequest(cmd *cobra.Command, args []string) (*config.Request, error) {
	req := &config.Request{}
	if requestFile != "" {
		r, err := config.LoadRequest(requestFile)
		if err != nil {
			return nil, err
		}
		req = r
	}
	if len(args) > 0 {
		req.Input = args[0]
	}
	if len(args) > 1 {
		req.Output = args[1]
	}

	flags := cmd.Flags()
	if flags.Changed("vars") {
		req.Vars = varNames
	}
	if flags.Changed("xy-names") {
		if len(xyNames) != 2 {
			return nil, errors.New("--xy-names needs exactly two names")
		}
		req.XName, req.YName = xyNames[0], xyNames[1]
	}
	if flags.Changed("bbox") {
		if len(bbox) != 4 {
			return nil, errors.New("--bbox needs 4 values")
		}
		req.BBox = bbox
	}
	if flags.Changed("res") || req.Res == 0 {
		req.Res = res
	}
	if flags.Changed("oversampling") || req.Oversampling == 0 {
		req.Oversampling = oversampling
	}
	if flags.Changed("denom-x") || req.DenomX == 0 {
		req.DenomX = denomX
	}
	if flags.Changed("denom-y") || req.DenomY == 0 {
		req.DenomY = denomY
	}
	if flags.Changed("delta") || req.Delta == 0 {
		req.Delta = delta
	}
	if flags.Changed("fill") || req.Fill == nil {
		req.Fill = &fill
	}
	if flags.Changed("fractional") {
		req.Fractional = fractional
	}
	if flags.Changed("workers") || req.Workers == 0 {
		req.Workers = numWorkers
	}
	return req, nil
}

func run(ctx context.Context, req *config.Request) error {
	if ctx == nil {
		ctx = context.Background()
	}

	src, err := files.Read(req.Input)
	if err != nil {
		return err
	}
	gc, err := rectify.NewGeoCoding(src, req.XName, req.YName)
	if err != nil {
		return err
	}

	geomOpts := rectify.DefaultGeomOptions()
	geomOpts.Oversampling = req.Oversampling
	geomOpts.DenomX = req.DenomX
	geomOpts.DenomY = req.DenomY
	opts := rectify.Options{
		VarNames:    req.Vars,
		GeoCoding:   gc,
		GeomOptions: geomOpts,
		Delta:       req.Delta,
		UsePixelMap: true,
		FillValue:   *req.Fill,
		Workers:     req.Workers,
	}
	if len(req.BBox) == 4 || req.Res > 0 {
		var b *domain.BBox
		if len(req.BBox) == 4 {
			b = &domain.BBox{XMin: req.BBox[0], YMin: req.BBox[1], XMax: req.BBox[2], YMax: req.BBox[3]}
			if err := b.Validate(); err != nil {
				return err
			}
		}
		geom, err := rectify.BBoxGeom(gc, b, req.Res, geomOpts)
		if err != nil {
			return err
		}
		opts.OutputGeom = &geom
	}

	p, err := rectify.Prepare(src, opts)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Println("Source does not intersect the output grid, nothing written")
		return nil
	}
	fmt.Printf("Output grid: %dx%d, res %g, origin (%g, %g)\n",
		p.Geom.Width, p.Geom.Height, p.Geom.Res, p.Geom.XMin, p.Geom.YMin)

	pm, err := p.PixelMap(req.Fractional)
	if err != nil {
		return err
	}
	fmt.Printf("Mapped %d of %d output pixels\n", pm.Coverage(), pm.Width*pm.Height)

	out := p.NewOutput()

	uiprogress.Start()
	count := len(p.Vars)
	bar := uiprogress.AddBar(count).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		name := ""
		if i := b.Current(); i < count {
			name = p.Vars[i].Name
		}
		return fmt.Sprintf("%-12.12s (%3v/%3v)", name, b.Current(), count)
	})
	for _, v := range p.Vars {
		dst, err := p.ExtractVar(ctx, pm, v)
		if err != nil {
			uiprogress.Stop()
			return err
		}
		out.Set(v.Name, dst)
		bar.Incr()
	}
	uiprogress.Stop()

	if req.Fractional {
		if err := addIndexVars(out, pm.Translate(p.Offset()), gc); err != nil {
			return err
		}
	}

	if err := files.Write(req.Output, out); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", req.Output)
	return nil
}

// addIndexVars stores the pixel map as src_i and src_j on the output grid.
// pm must index the input file, not a cropped part of it.
func addIndexVars(out *domain.Dataset, pm *rectify.PixelMap, gc *rectify.GeoCoding) error {
	dims := []string{gc.YName, gc.XName}
	shape := []int{pm.Height, pm.Width}
	srcI, err := domain.NewArray(dims, shape, pm.SrcI)
	if err != nil {
		return err
	}
	srcJ, err := domain.NewArray(dims, shape, pm.SrcJ)
	if err != nil {
		return err
	}
	srcI.Attrs = map[string]any{"long_name": "source column index"}
	srcJ.Attrs = map[string]any{"long_name": "source row index"}
	out.Set("src_i", srcI)
	out.Set("src_j", srcJ)
	return nil
}
