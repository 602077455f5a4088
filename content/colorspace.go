package content

import (
	"context"
	"math"

	"github.com/NityaNandPandey/AndroidPDF/filters"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// ColorFamily classifies color spaces.
type ColorFamily int

const (
	FamilyGray ColorFamily = iota
	FamilyRGB
	FamilyCMYK
	FamilyLab
	FamilyIndexed
	FamilySeparation
	FamilyPattern
)

// ColorSpace is a resolved color space. Name is the device space name or
// the resource name the content stream used; Obj is the resource value.
type ColorSpace struct {
	Name   sdf.Name
	Obj    sdf.Obj
	Family ColorFamily
	N      int

	base   *ColorSpace
	hival  int
	lookup []byte
}

var (
	DeviceGray = ColorSpace{Name: "DeviceGray", Family: FamilyGray, N: 1}
	DeviceRGB  = ColorSpace{Name: "DeviceRGB", Family: FamilyRGB, N: 3}
	DeviceCMYK = ColorSpace{Name: "DeviceCMYK", Family: FamilyCMYK, N: 4}
	PatternCS  = ColorSpace{Name: "Pattern", Family: FamilyPattern}
)

// IsDevice reports whether cs is one of the device spaces, which need no
// resource entry.
func (cs ColorSpace) IsDevice() bool {
	return cs.Obj == nil && (cs.Name == "DeviceGray" || cs.Name == "DeviceRGB" || cs.Name == "DeviceCMYK" || cs.Name == "Pattern")
}

func (cs ColorSpace) equal(o ColorSpace) bool {
	return cs.Name == o.Name && sameObj(cs.Obj, o.Obj)
}

// Initial returns the initial color of the space.
func (cs ColorSpace) Initial() []float64 {
	switch cs.Family {
	case FamilyCMYK:
		return []float64{0, 0, 0, 1}
	case FamilySeparation:
		out := make([]float64, cs.N)
		for i := range out {
			out[i] = 1
		}
		return out
	case FamilyPattern:
		return nil
	}
	return make([]float64, cs.N)
}

// RGB converts comps to RGB in [0,1].
func (cs ColorSpace) RGB(comps []float64) (r, g, b float64) {
	at := func(i int) float64 {
		if i < len(comps) {
			return clamp01(comps[i])
		}
		return 0
	}
	switch cs.Family {
	case FamilyGray:
		v := at(0)
		return v, v, v
	case FamilyRGB:
		return at(0), at(1), at(2)
	case FamilyCMYK:
		k := at(3)
		return (1 - at(0)) * (1 - k), (1 - at(1)) * (1 - k), (1 - at(2)) * (1 - k)
	case FamilyLab:
		return labToRGB(comps)
	case FamilyIndexed:
		if cs.base == nil || len(comps) == 0 {
			return 0, 0, 0
		}
		idx := int(math.Round(comps[0]))
		if idx < 0 {
			idx = 0
		}
		if idx > cs.hival {
			idx = cs.hival
		}
		n := cs.base.N
		vals := make([]float64, n)
		for i := 0; i < n; i++ {
			if p := idx*n + i; p < len(cs.lookup) {
				vals[i] = float64(cs.lookup[p]) / 255
			}
		}
		if cs.base.Family == FamilyLab {
			vals = scaleLab(vals)
		}
		return cs.base.RGB(vals)
	case FamilySeparation:
		// The tint shows as gray: full tint is black.
		var t float64
		for i := range comps {
			t = math.Max(t, at(i))
		}
		return 1 - t, 1 - t, 1 - t
	}
	return 0, 0, 0
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

// scaleLab maps lookup bytes of an Indexed Lab space to L*a*b* ranges.
func scaleLab(v []float64) []float64 {
	if len(v) < 3 {
		return v
	}
	return []float64{v[0] * 100, v[1]*200 - 100, v[2]*200 - 100}
}

func labToRGB(c []float64) (float64, float64, float64) {
	if len(c) < 3 {
		return 0, 0, 0
	}
	fy := (c[0] + 16) / 116
	fx := fy + c[1]/500
	fz := fy - c[2]/200
	finv := func(t float64) float64 {
		if t > 6.0/29 {
			return t * t * t
		}
		return 3 * (6.0 / 29) * (6.0 / 29) * (t - 4.0/29)
	}
	x, y, z := 0.9505*finv(fx), finv(fy), 1.089*finv(fz)
	r := 3.2406*x - 1.5372*y - 0.4986*z
	g := -0.9689*x + 1.8758*y + 0.0415*z
	b := 0.0557*x - 0.2040*y + 1.0570*z
	gamma := func(v float64) float64 {
		if v <= 0.0031308 {
			return clamp01(12.92 * v)
		}
		return clamp01(1.055*math.Pow(v, 1/2.4) - 0.055)
	}
	return gamma(r), gamma(g), gamma(b)
}

// ResolveColorSpace interprets a color space given by name (looked up in
// the ColorSpace resources res when not a device name) or by value.
func ResolveColorSpace(doc *sdf.Doc, res *sdf.Dict, o sdf.Obj) (ColorSpace, error) {
	return resolveColorSpace(doc, res, o, 0)
}

func resolveColorSpace(doc *sdf.Doc, res *sdf.Dict, o sdf.Obj, depth int) (ColorSpace, error) {
	if depth > 8 {
		return ColorSpace{}, sdf.Errorf("color space", sdf.ErrCorrupt, "color space nesting too deep")
	}
	if n, ok := o.(sdf.Name); ok {
		switch n {
		case "DeviceGray", "G", "CalGray":
			return DeviceGray, nil
		case "DeviceRGB", "RGB", "CalRGB":
			return DeviceRGB, nil
		case "DeviceCMYK", "CMYK":
			return DeviceCMYK, nil
		case "Pattern":
			return PatternCS, nil
		case "I", "Indexed":
			return ColorSpace{}, sdf.Errorf("color space", sdf.ErrCorrupt, "bare /Indexed color space")
		}
		var entry sdf.Obj = sdf.Null{}
		if res != nil {
			if css := doc.Dict(res.Get("ColorSpace")); css != nil {
				entry = css.Get(n)
			}
		}
		if sdf.IsNull(doc.MustResolve(entry)) {
			return ColorSpace{}, sdf.Errorf("color space", sdf.ErrNotFound, "color space /%s not in resources", n)
		}
		cs, err := resolveColorSpace(doc, res, entry, depth+1)
		if err != nil {
			return cs, err
		}
		cs.Name, cs.Obj = n, entry
		return cs, nil
	}
	v := doc.MustResolve(o)
	if n, ok := v.(sdf.Name); ok {
		cs, err := resolveColorSpace(doc, res, n, depth+1)
		cs.Obj = o
		return cs, err
	}
	arr, ok := v.(*sdf.Array)
	if !ok || arr.Len() == 0 {
		return ColorSpace{}, sdf.Errorf("color space", sdf.ErrCorrupt, "invalid color space %s", sdf.Bytes(v))
	}
	family, _ := doc.Name(arr.At(0))
	cs := ColorSpace{Name: family, Obj: o}
	switch family {
	case "DeviceGray", "CalGray", "G":
		cs.Family, cs.N = FamilyGray, 1
	case "DeviceRGB", "CalRGB", "RGB":
		cs.Family, cs.N = FamilyRGB, 3
	case "DeviceCMYK", "CMYK":
		cs.Family, cs.N = FamilyCMYK, 4
	case "Lab":
		cs.Family, cs.N = FamilyLab, 3
	case "ICCBased":
		st := doc.Stream(arr.At(1))
		n := int64(3)
		if st != nil {
			if v, ok := doc.Int(st.Dict.Get("N")); ok {
				n = v
			}
		}
		switch n {
		case 1:
			cs.Family, cs.N = FamilyGray, 1
		case 4:
			cs.Family, cs.N = FamilyCMYK, 4
		default:
			cs.Family, cs.N = FamilyRGB, 3
		}
	case "Indexed", "I":
		base, err := resolveColorSpace(doc, res, arr.At(1), depth+1)
		if err != nil {
			return cs, err
		}
		hival, _ := doc.Int(arr.At(2))
		cs.Family, cs.N, cs.base, cs.hival = FamilyIndexed, 1, &base, int(hival)
		switch lk := doc.MustResolve(arr.At(3)).(type) {
		case sdf.String:
			cs.lookup = lk.Value
		case *sdf.Stream:
			data, err := filters.DecodeStream(context.Background(), doc, lk, filters.DefaultLimits())
			if err != nil {
				return cs, err
			}
			cs.lookup = data
		}
	case "Separation":
		cs.Family, cs.N = FamilySeparation, 1
	case "DeviceN":
		cs.Family, cs.N = FamilySeparation, doc.Array(arr.At(1)).Len()
	case "Pattern":
		cs.Family = FamilyPattern
		if arr.Len() > 1 {
			base, err := resolveColorSpace(doc, res, arr.At(1), depth+1)
			if err != nil {
				return cs, err
			}
			cs.base, cs.N = &base, base.N
		}
	default:
		return cs, sdf.Errorf("color space", sdf.ErrUnsupported, "color space /%s", family)
	}
	return cs, nil
}

// Base returns the underlying space of Indexed and uncolored Pattern
// spaces.
func (cs ColorSpace) Base() (ColorSpace, bool) {
	if cs.base == nil {
		return ColorSpace{}, false
	}
	return *cs.base, true
}
