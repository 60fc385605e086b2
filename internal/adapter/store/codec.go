package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"go.ngs.io/rectify/internal/domain"
	"go.ngs.io/rectify/internal/rectify"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// EncodePixelMap serializes pm as zstd-compressed msgpack.
func EncodePixelMap(pm *rectify.PixelMap) ([]byte, error) {
	raw, err := msgpack.Marshal(pm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pixel map: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// DecodePixelMap is the inverse of EncodePixelMap.
func DecodePixelMap(b []byte) (*rectify.PixelMap, error) {
	raw, err := zstdDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress pixel map: %w", err)
	}
	var pm rectify.PixelMap
	if err := msgpack.Unmarshal(raw, &pm); err != nil {
		return nil, fmt.Errorf("failed to decode pixel map: %w", err)
	}
	if len(pm.SrcI) != pm.Width*pm.Height || len(pm.SrcJ) != pm.Width*pm.Height {
		return nil, fmt.Errorf("%w: decoded pixel map of %dx%d holds %d/%d indices",
			domain.ErrShape, pm.Width, pm.Height, len(pm.SrcI), len(pm.SrcJ))
	}
	return &pm, nil
}

// PixelMapKey identifies the pixel map of a source grid on a destination
// geometry. Sources with bit-identical coordinates share a key.
func PixelMapKey(gc *rectify.GeoCoding, geom domain.ImageGeom, delta float64, fractional bool) string {
	h := xxhash.New()
	var buf [8]byte
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}

	putInt(gc.Height())
	putInt(gc.Width())
	for _, v := range gc.X.Data {
		putFloat(v)
	}
	for _, v := range gc.Y.Data {
		putFloat(v)
	}
	putInt(geom.Width)
	putInt(geom.Height)
	putFloat(geom.XMin)
	putFloat(geom.YMin)
	putFloat(geom.Res)
	putFloat(delta)
	if fractional {
		putInt(1)
	} else {
		putInt(0)
	}
	return "pixelmap:" + strconv.FormatUint(h.Sum64(), 16)
}
