package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Request is a rectification job read from a YAML or JSON file. Unset
// numeric fields keep their zero value and are filled from flags or
// defaults by the caller.
type Request struct {
	Input        string    `mapstructure:"input"`
	Output       string    `mapstructure:"output"`
	Vars         []string  `mapstructure:"vars"`
	XName        string    `mapstructure:"x_name"`
	YName        string    `mapstructure:"y_name"`
	BBox         []float64 `mapstructure:"bbox"`
	Res          float64   `mapstructure:"res"`
	Oversampling float64   `mapstructure:"oversampling"`
	DenomX       int       `mapstructure:"denom_x"`
	DenomY       int       `mapstructure:"denom_y"`
	Delta        float64   `mapstructure:"delta"`
	Fill         *float64  `mapstructure:"fill"`
	Fractional   bool      `mapstructure:"fractional"`
	Workers      int       `mapstructure:"workers"`
}

// LoadRequest reads a request file. The format follows the file extension.
func LoadRequest(path string) (*Request, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read request %s: %w", path, err)
	}

	var req Request
	if err := v.Unmarshal(&req); err != nil {
		return nil, fmt.Errorf("unmarshal request %s: %w", path, err)
	}
	if len(req.BBox) != 0 && len(req.BBox) != 4 {
		return nil, fmt.Errorf("request %s: bbox needs 4 values, got %d", path, len(req.BBox))
	}
	return &req, nil
}
