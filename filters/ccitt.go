package filters

import (
	"bytes"
	"context"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
	"golang.org/x/image/ccitt"
)

type ccittDecoder struct{}

func (ccittDecoder) Name() string { return "CCITTFaxDecode" }

func NewCCITTFaxDecoder() Decoder { return ccittDecoder{} }

// Decode produces 1 bit per pixel rows where 0 is black, the layout an
// image with /ImageMask or /DeviceGray 1 bpc expects.
func (ccittDecoder) Decode(ctx context.Context, in []byte, params *sdf.Dict) ([]byte, error) {
	k := int64(0)
	columns, rows := int64(1728), int64(ccitt.AutoDetectHeight)
	var blackIs1, aligned bool
	if params != nil {
		if v, ok := sdf.Integer(params.Get("K")); ok {
			k = v
		}
		if v, ok := sdf.Integer(params.Get("Columns")); ok && v > 0 {
			columns = v
		}
		if v, ok := sdf.Integer(params.Get("Rows")); ok && v > 0 {
			rows = v
		}
		if v, ok := params.Get("BlackIs1").(sdf.Bool); ok {
			blackIs1 = bool(v)
		}
		if v, ok := params.Get("EncodedByteAlign").(sdf.Bool); ok {
			aligned = bool(v)
		}
	}
	var sf ccitt.SubFormat
	switch {
	case k < 0:
		sf = ccitt.Group4
	case k == 0:
		sf = ccitt.Group3
	default:
		return nil, fmt.Errorf("%w: mixed 1D/2D Group 3 (K=%d)", sdf.ErrUnsupported, k)
	}
	r := ccitt.NewReader(bytes.NewReader(in), ccitt.MSB, sf, int(columns), int(rows),
		&ccitt.Options{Invert: blackIs1, Align: aligned})
	return readLimited(ctx, r)
}
