package content

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// ImageCompression selects how NewImage stores samples.
type ImageCompression int

const (
	CompressFlate ImageCompression = iota
	CompressDCT
)

// ImageOptions configures NewImage.
type ImageOptions struct {
	Compression ImageCompression
	// Quality is the JPEG quality for CompressDCT; zero means 85.
	Quality     int
	Interpolate bool
}

// Image wraps an image XObject, or the dictionary and data of an inline
// image.
type Image struct {
	Ref  sdf.Ref
	Dict *sdf.Dict
	// Data is the still-encoded sample data.
	Data []byte

	doc *sdf.Doc
	res *sdf.Dict
}

// LoadImage wraps the image XObject o refers to.
func LoadImage(doc *sdf.Doc, o sdf.Obj) (*Image, error) {
	st := doc.Stream(o)
	if st == nil {
		return nil, sdf.Errorf("load image", sdf.ErrCorrupt, "image is not a stream")
	}
	im := &Image{Dict: st.Dict, Data: st.Data, doc: doc}
	if r, ok := o.(sdf.Ref); ok {
		im.Ref = r
	}
	return im, nil
}

var inlineKeys = map[sdf.Name]sdf.Name{
	"BPC": "BitsPerComponent",
	"CS":  "ColorSpace",
	"D":   "Decode",
	"DP":  "DecodeParms",
	"F":   "Filter",
	"H":   "Height",
	"IM":  "ImageMask",
	"I":   "Interpolate",
	"W":   "Width",
	"L":   "Length",
}

// inlineImage wraps an inline image. Abbreviated keys are expanded on a
// copy; res resolves named color spaces.
func inlineImage(doc *sdf.Doc, dict *sdf.Dict, data []byte, res *sdf.Dict) *Image {
	full := sdf.NewDict()
	for _, k := range dict.Keys() {
		name := k
		if long, ok := inlineKeys[k]; ok {
			name = long
		}
		full.Set(name, dict.Get(k))
	}
	return &Image{Dict: full, Data: data, doc: doc, res: res}
}

// NewImage adds img to doc as an image XObject. Transparent images get a
// soft mask.
func NewImage(doc *sdf.Doc, img image.Image, opts ImageOptions) (*Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if err := filters.ValidateImageBounds(w, h); err != nil {
		return nil, sdf.Errorf("new image", sdf.ErrUnsupported, "%v", err)
	}
	dict := sdf.NewDict()
	dict.PutName("Type", "XObject")
	dict.PutName("Subtype", "Image")
	dict.PutInt("Width", int64(w))
	dict.PutInt("Height", int64(h))
	dict.PutInt("BitsPerComponent", 8)
	if opts.Interpolate {
		dict.PutBool("Interpolate", true)
	}
	st := sdf.NewStream(dict, nil)

	gray := false
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		gray = true
	}
	if opts.Compression == CompressDCT {
		q := opts.Quality
		if q <= 0 {
			q = 85
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, err
		}
		st.Data = buf.Bytes()
		dict.PutName("Filter", "DCTDecode")
		dict.PutInt("Length", int64(buf.Len()))
		if gray {
			dict.PutName("ColorSpace", "DeviceGray")
		} else {
			dict.PutName("ColorSpace", "DeviceRGB")
		}
	} else {
		var raw []byte
		if gray {
			dict.PutName("ColorSpace", "DeviceGray")
			raw = make([]byte, 0, w*h)
		} else {
			dict.PutName("ColorSpace", "DeviceRGB")
			raw = make([]byte, 0, 3*w*h)
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if gray {
					raw = append(raw, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
					continue
				}
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				raw = append(raw, c.R, c.G, c.B)
			}
		}
		if err := filters.SetStreamData(st, raw, "FlateDecode"); err != nil {
			return nil, err
		}
	}
	if !opaque(img) {
		alpha := make([]byte, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				alpha = append(alpha, color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA).A)
			}
		}
		md := sdf.NewDict()
		md.PutName("Type", "XObject")
		md.PutName("Subtype", "Image")
		md.PutInt("Width", int64(w))
		md.PutInt("Height", int64(h))
		md.PutInt("BitsPerComponent", 8)
		md.PutName("ColorSpace", "DeviceGray")
		mask := sdf.NewStream(md, nil)
		if err := filters.SetStreamData(mask, alpha, "FlateDecode"); err != nil {
			return nil, err
		}
		dict.Set("SMask", doc.CreateIndirect(mask))
	}
	ref := doc.CreateIndirect(st)
	return &Image{Ref: ref, Dict: dict, Data: st.Data, doc: doc}, nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}

func (im *Image) int(key sdf.Name) int {
	v, _ := im.doc.Int(im.Dict.Get(key))
	return int(v)
}

func (im *Image) Width() int  { return im.int("Width") }
func (im *Image) Height() int { return im.int("Height") }

// BitsPerComponent is 1 for image masks.
func (im *Image) BitsPerComponent() int {
	if im.IsImageMask() {
		return 1
	}
	return im.int("BitsPerComponent")
}

// IsImageMask reports whether the image is a stencil mask painted with
// the fill color.
func (im *Image) IsImageMask() bool {
	v, _ := im.doc.MustResolve(im.Dict.Get("ImageMask")).(sdf.Bool)
	return bool(v)
}

// ColorSpace resolves the image color space.
func (im *Image) ColorSpace() (ColorSpace, error) {
	if im.IsImageMask() {
		return DeviceGray, nil
	}
	o := im.Dict.Get("ColorSpace")
	if sdf.IsNull(o) {
		return DeviceRGB, nil
	}
	return ResolveColorSpace(im.doc, im.res, o)
}

// Decode returns the samples as a Go image. Stencil masks decode to an
// *image.Alpha marking the painted pixels. JBIG2 and JPEG 2000 data
// report ErrUnsupported.
func (im *Image) Decode(ctx context.Context) (image.Image, error) {
	w, h := im.Width(), im.Height()
	if err := filters.ValidateImageBounds(w, h); err != nil {
		return nil, sdf.Errorf("decode image", sdf.ErrCorrupt, "%v", err)
	}
	names, params := filters.ExtractFilters(im.doc, im.Dict)
	stop := len(names)
	for i, n := range names {
		if n == "DCTDecode" || n == "DCT" || n == "JPXDecode" || n == "JBIG2Decode" {
			stop = i
			break
		}
	}
	data, err := filters.NewPipeline(nil, filters.DefaultLimits()).Decode(ctx, im.Data, names[:stop], params[:stop])
	if err != nil {
		return nil, err
	}
	var out image.Image
	switch {
	case stop < len(names) && (names[stop] == "DCTDecode" || names[stop] == "DCT"):
		out, err = jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, sdf.Errorf("decode image", sdf.ErrCorrupt, "jpeg: %v", err)
		}
	case stop < len(names):
		return nil, sdf.Errorf("decode image", sdf.ErrUnsupported, "filter %s", names[stop])
	case im.IsImageMask():
		return im.stencil(data, w, h), nil
	default:
		out, err = im.samples(data, w, h)
		if err != nil {
			return nil, err
		}
	}
	if sm := im.doc.Stream(im.Dict.Get("SMask")); sm != nil {
		mask, err := LoadImage(im.doc, im.Dict.Get("SMask"))
		if err == nil {
			if m, err := mask.Decode(ctx); err == nil {
				out = applyAlpha(out, m)
			}
		}
	}
	return out, nil
}

func (im *Image) decodeArray(n int) []float64 {
	d, ok := im.doc.Numbers(im.Dict.Get("Decode"))
	if ok && len(d) >= 2*n {
		return d
	}
	return nil
}

// stencil unpacks a 1-bit mask. By default a 0 sample paints.
func (im *Image) stencil(data []byte, w, h int) *image.Alpha {
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	paint := byte(0)
	if d := im.decodeArray(1); d != nil && d[0] == 1 {
		paint = 1
	}
	stride := (w + 7) / 8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*stride + x/8
			if i >= len(data) {
				return out
			}
			bit := (data[i] >> (7 - uint(x%8))) & 1
			if bit == paint {
				out.Pix[y*out.Stride+x] = 0xff
			}
		}
	}
	return out
}

// samples converts unpacked component data of 1, 2, 4, 8 or 16 bits.
func (im *Image) samples(data []byte, w, h int) (image.Image, error) {
	cs, err := im.ColorSpace()
	if err != nil {
		return nil, err
	}
	bpc := im.BitsPerComponent()
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, sdf.Errorf("decode image", sdf.ErrCorrupt, "bits per component %d", bpc)
	}
	n := cs.N
	if n == 0 {
		return nil, sdf.Errorf("decode image", sdf.ErrUnsupported, "color space %s for images", cs.Name)
	}
	maxv := float64(int(1)<<uint(bpc) - 1)
	dec := im.decodeArray(n)
	stride := (w*n*bpc + 7) / 8
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	comps := make([]float64, n)
	for y := 0; y < h; y++ {
		row := y * stride
		if row >= len(data) {
			break
		}
		for x := 0; x < w; x++ {
			for c := 0; c < n; c++ {
				v := float64(sampleAt(data[row:], (x*n+c)*bpc, bpc))
				switch {
				case dec != nil:
					v = dec[2*c] + v*(dec[2*c+1]-dec[2*c])/maxv
				case cs.Family == FamilyIndexed:
				case cs.Family == FamilyLab:
					v = v / maxv
					v = [3]float64{v * 100, v*200 - 100, v*200 - 100}[c]
				default:
					v /= maxv
				}
				comps[c] = v
			}
			r, g, b := cs.RGB(comps)
			o := out.PixOffset(x, y)
			out.Pix[o] = uint8(r*255 + 0.5)
			out.Pix[o+1] = uint8(g*255 + 0.5)
			out.Pix[o+2] = uint8(b*255 + 0.5)
			out.Pix[o+3] = 0xff
		}
	}
	return out, nil
}

func sampleAt(row []byte, bit, bpc int) int {
	switch bpc {
	case 8:
		if i := bit / 8; i < len(row) {
			return int(row[i])
		}
	case 16:
		if i := bit / 8; i+1 < len(row) {
			return int(row[i])<<8 | int(row[i+1])
		}
	default:
		i := bit / 8
		if i >= len(row) {
			return 0
		}
		shift := 8 - bpc - bit%8
		return int(row[i]>>uint(shift)) & (1<<uint(bpc) - 1)
	}
	return 0
}

// applyAlpha uses the gray level of mask, scaled to img, as alpha.
func applyAlpha(img, mask image.Image) image.Image {
	b := img.Bounds()
	mb := mask.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		my := mb.Min.Y + y*mb.Dy()/b.Dy()
		for x := 0; x < b.Dx(); x++ {
			mx := mb.Min.X + x*mb.Dx()/b.Dx()
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.A = color.GrayModel.Convert(mask.At(mx, my)).(color.Gray).Y
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}
