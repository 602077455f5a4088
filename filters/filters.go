// Package filters implements the standard PDF stream filters.
package filters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Decoder reverses one filter. params is the resolved /DecodeParms
// dictionary for this filter and may be nil.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *sdf.Dict) ([]byte, error)
}

// Encoder applies one filter.
type Encoder interface {
	Name() string
	Encode(input []byte, params *sdf.Dict) ([]byte, error)
}

type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

func DefaultLimits() Limits {
	return Limits{MaxDecompressedSize: 512 << 20, MaxDecodeTime: 30 * time.Second}
}

// ErrLimit is returned when decoding would exceed Limits.
var ErrLimit = errors.New("decode limit exceeded")

type Registry struct {
	decoders map[string]Decoder
	encoders map[string]Encoder
}

func (r *Registry) Register(d Decoder) {
	if r.decoders == nil {
		r.decoders = make(map[string]Decoder)
	}
	r.decoders[d.Name()] = d
	if e, ok := d.(Encoder); ok {
		if r.encoders == nil {
			r.encoders = make(map[string]Encoder)
		}
		r.encoders[d.Name()] = e
	}
}

func (r *Registry) Get(name string) (Decoder, bool) { d, ok := r.decoders[canonical(name)]; return d, ok }

func (r *Registry) Encoder(name string) (Encoder, bool) {
	e, ok := r.encoders[canonical(name)]
	return e, ok
}

// NewRegistry returns a registry with every supported filter.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(flateCodec{})
	r.Register(lzwDecoder{})
	r.Register(asciiHexCodec{})
	r.Register(ascii85Codec{})
	r.Register(runLengthCodec{})
	r.Register(ccittDecoder{})
	r.Register(passThrough{"DCTDecode"})
	r.Register(passThrough{"Crypt"})
	r.Register(unsupported{"JBIG2Decode"})
	r.Register(unsupported{"JPXDecode"})
	return r
}

var abbreviations = map[string]string{
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"LZW": "LZWDecode",
	"Fl":  "FlateDecode",
	"RL":  "RunLengthDecode",
	"CCF": "CCITTFaxDecode",
	"DCT": "DCTDecode",
}

// canonical expands the abbreviated filter names allowed in inline images.
func canonical(name string) string {
	if full, ok := abbreviations[name]; ok {
		return full
	}
	return name
}

type Pipeline struct {
	registry *Registry
	limits   Limits
}

// NewPipeline constructs a pipeline over r. A nil registry uses NewRegistry.
func NewPipeline(r *Registry, limits Limits) *Pipeline {
	if r == nil {
		r = NewRegistry()
	}
	return &Pipeline{registry: r, limits: limits}
}

// Decode applies the decoders for filterNames in order.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []*sdf.Dict) ([]byte, error) {
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	data := input
	for i, name := range filterNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec, ok := p.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: filter %s", sdf.ErrUnsupported, name)
		}
		var param *sdf.Dict
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(withLimit(ctx, p.limits.MaxDecompressedSize), data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, fmt.Errorf("%s: %w: %d bytes", name, ErrLimit, len(out))
		}
		data = out
	}
	return data, nil
}

// Encode applies the encoders for filterNames so that Decode with the same
// names reverses it. The last name is applied first.
func (p *Pipeline) Encode(input []byte, filterNames []string, params []*sdf.Dict) ([]byte, error) {
	data := input
	for i := len(filterNames) - 1; i >= 0; i-- {
		enc, ok := p.registry.Encoder(filterNames[i])
		if !ok {
			return nil, fmt.Errorf("%w: no encoder for %s", sdf.ErrUnsupported, filterNames[i])
		}
		var param *sdf.Dict
		if i < len(params) {
			param = params[i]
		}
		out, err := enc.Encode(data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filterNames[i], err)
		}
		data = out
	}
	return data, nil
}

type limitKey struct{}

func withLimit(ctx context.Context, n int64) context.Context {
	if n <= 0 {
		return ctx
	}
	return context.WithValue(ctx, limitKey{}, n)
}

// outputLimit returns the byte budget decoders must respect, or 0.
func outputLimit(ctx context.Context) int64 {
	n, _ := ctx.Value(limitKey{}).(int64)
	return n
}

type passThrough struct{ name string }

func (p passThrough) Name() string { return p.name }
func (passThrough) Decode(_ context.Context, in []byte, _ *sdf.Dict) ([]byte, error) {
	return in, nil
}

type unsupported struct{ name string }

func (u unsupported) Name() string { return u.name }
func (u unsupported) Decode(context.Context, []byte, *sdf.Dict) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", sdf.ErrUnsupported, u.name)
}
