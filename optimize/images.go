package optimize

import (
	"context"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/NityaNandPandey/AndroidPDF/content"
	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// placement is the largest size, in points, an image is drawn at.
type placement struct {
	w, h float64
}

// imagePlacements walks every page, forms included, and records the
// largest size each image XObject is drawn at.
func (o *Optimizer) imagePlacements(ctx context.Context, doc *pdf.Doc) (map[sdf.Ref]placement, error) {
	out := make(map[sdf.Ref]placement)
	r := content.NewReader(doc)
	for _, p := range doc.Pages() {
		if err := r.Begin(ctx, p); err != nil {
			o.log.Debug("optimize: page not readable", observability.Int("page", p.Index()), observability.Err(err))
			continue
		}
		elems, err := r.ReadAll(ctx, true)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err != nil {
			o.log.Debug("optimize: page content incomplete", observability.Int("page", p.Index()), observability.Err(err))
		}
		for _, e := range elems {
			if e.Type != content.ElementImage {
				continue
			}
			ref, ok := e.XObject.Obj.(sdf.Ref)
			if !ok {
				continue
			}
			m := e.State.CTM
			cur := out[ref]
			cur.w = math.Max(cur.w, math.Hypot(m[0], m[1]))
			cur.h = math.Max(cur.h, math.Hypot(m[2], m[3]))
			out[ref] = cur
		}
	}
	return out, nil
}

// downsampleImages resamples images drawn above MaxPPI to ResamplePPI.
// Masks, images carrying masks or decode arrays, and images whose samples
// cannot be decoded are left alone.
func (o *Optimizer) downsampleImages(ctx context.Context, doc *pdf.Doc) (int, error) {
	ds := o.settings.DownsampleImages
	target := ds.ResamplePPI
	if target <= 0 || target > ds.MaxPPI {
		target = ds.MaxPPI
	}
	places, err := o.imagePlacements(ctx, doc)
	if err != nil {
		return 0, err
	}
	sd := doc.SDF()
	n := 0
	for ref, pl := range places {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if pl.w <= 0 || pl.h <= 0 {
			continue
		}
		im, err := content.LoadImage(sd, ref)
		if err != nil || im.IsImageMask() {
			continue
		}
		if im.Dict.Has("SMask") || im.Dict.Has("Mask") || im.Dict.Has("Decode") {
			continue
		}
		w, h := float64(im.Width()), float64(im.Height())
		if w*72/pl.w <= ds.MaxPPI && h*72/pl.h <= ds.MaxPPI {
			continue
		}
		tw := int(math.Max(1, math.Round(target*pl.w/72)))
		th := int(math.Max(1, math.Round(target*pl.h/72)))
		if float64(tw) >= w || float64(th) >= h {
			continue
		}
		src, err := im.Decode(ctx)
		if err != nil {
			o.log.Debug("optimize: image not decodable", observability.Int("obj", ref.Num), observability.Err(err))
			continue
		}
		var dst draw.Image
		if _, ok := src.(*image.Gray); ok {
			dst = image.NewGray(image.Rect(0, 0, tw, th))
		} else {
			dst = image.NewRGBA(image.Rect(0, 0, tw, th))
		}
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

		opts := content.ImageOptions{Compression: content.CompressFlate}
		if ds.JPEGQuality > 0 {
			opts = content.ImageOptions{Compression: content.CompressDCT, Quality: ds.JPEGQuality}
		}
		next, err := content.NewImage(sd, dst, opts)
		if err != nil {
			return n, err
		}
		st := sd.Stream(next.Ref)
		for _, k := range []sdf.Name{"Interpolate", "OC", "Metadata", "StructParent", "Intent"} {
			if v, ok := im.Dict.Find(k); ok {
				st.Dict.Set(k, v)
			}
		}
		if err := sd.Set(ref, st); err != nil {
			return n, err
		}
		if err := sd.Free(next.Ref); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
