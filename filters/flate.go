package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

type flateCodec struct{}

func (flateCodec) Name() string { return "FlateDecode" }

func NewFlateDecoder() Decoder { return flateCodec{} }

func (flateCodec) Decode(ctx context.Context, in []byte, params *sdf.Dict) ([]byte, error) {
	var r io.ReadCloser
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		// Some producers omit the zlib header.
		r = flate.NewReader(bytes.NewReader(in))
	} else {
		r = zr
	}
	defer r.Close()
	out, err := readLimited(ctx, r)
	if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && len(out) > 0) {
		return nil, err
	}
	// Truncated streams keep what was recovered.
	return unpredict(out, params)
}

func (flateCodec) Encode(in []byte, params *sdf.Dict) ([]byte, error) {
	data, err := predict(in, params)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readLimited drains r, failing once the context's output budget is spent.
func readLimited(ctx context.Context, r io.Reader) ([]byte, error) {
	limit := outputLimit(ctx)
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if limit > 0 && int64(buf.Len()) > limit {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrLimit, limit)
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return buf.Bytes(), err
		}
	}
}

type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func readPredictor(params *sdf.Dict) predictorParams {
	p := predictorParams{predictor: 1, colors: 1, bpc: 8, columns: 1}
	if params == nil {
		return p
	}
	if v, ok := sdf.Integer(params.Get("Predictor")); ok {
		p.predictor = int(v)
	}
	if v, ok := sdf.Integer(params.Get("Colors")); ok && v > 0 {
		p.colors = int(v)
	}
	if v, ok := sdf.Integer(params.Get("BitsPerComponent")); ok && v > 0 {
		p.bpc = int(v)
	}
	if v, ok := sdf.Integer(params.Get("Columns")); ok && v > 0 {
		p.columns = int(v)
	}
	return p
}

func (p predictorParams) rowBytes() int { return (p.colors*p.bpc*p.columns + 7) / 8 }

func (p predictorParams) pixelBytes() int {
	n := (p.colors*p.bpc + 7) / 8
	if n < 1 {
		n = 1
	}
	return n
}

// unpredict reverses PNG (10-15) and TIFF (2) predictors.
func unpredict(data []byte, params *sdf.Dict) ([]byte, error) {
	p := readPredictor(params)
	switch {
	case p.predictor <= 1:
		return data, nil
	case p.predictor == 2:
		return unpredictTIFF(data, p)
	case p.predictor >= 10:
		return unpredictPNG(data, p)
	}
	return nil, fmt.Errorf("unknown predictor %d", p.predictor)
}

func unpredictPNG(data []byte, p predictorParams) ([]byte, error) {
	row := p.rowBytes()
	bpp := p.pixelBytes()
	prev := make([]byte, row)
	out := make([]byte, 0, len(data))
	for off := 0; off < len(data); off += row + 1 {
		typ := data[off]
		end := off + 1 + row
		if end > len(data) {
			end = len(data)
		}
		cur := make([]byte, row)
		copy(cur, data[off+1:end])
		for i := 0; i < row; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch typ {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d", typ)
			}
		}
		out = append(out, cur[:end-off-1]...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func unpredictTIFF(data []byte, p predictorParams) ([]byte, error) {
	if p.bpc != 8 {
		return nil, fmt.Errorf("%w: TIFF predictor with %d bits per component", sdf.ErrUnsupported, p.bpc)
	}
	row := p.rowBytes()
	out := append([]byte(nil), data...)
	for off := 0; off < len(out); off += row {
		end := off + row
		if end > len(out) {
			end = len(out)
		}
		for i := off + p.colors; i < end; i++ {
			out[i] += out[i-p.colors]
		}
	}
	return out, nil
}

// predict applies the PNG Up predictor when params ask for a PNG predictor.
func predict(data []byte, params *sdf.Dict) ([]byte, error) {
	p := readPredictor(params)
	if p.predictor <= 1 {
		return data, nil
	}
	if p.predictor < 10 {
		return nil, fmt.Errorf("%w: encoding with predictor %d", sdf.ErrUnsupported, p.predictor)
	}
	row := p.rowBytes()
	prev := make([]byte, row)
	out := make([]byte, 0, len(data)+len(data)/row+1)
	for off := 0; off < len(data); off += row {
		end := off + row
		if end > len(data) {
			end = len(data)
		}
		out = append(out, 2)
		for i := off; i < end; i++ {
			out = append(out, data[i]-prev[i-off])
		}
		copy(prev, data[off:end])
	}
	return out, nil
}
