// Package optimize shrinks documents: it drops unreachable objects and
// unused resources, merges duplicate objects, compresses streams and
// downsamples oversized images.
package optimize

import (
	"context"
	"fmt"

	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// DownsampleImages controls image resampling. Images displayed above
// MaxPPI are resampled to ResamplePPI. A zero MaxPPI disables it.
type DownsampleImages struct {
	MaxPPI      float64
	ResamplePPI float64
	// JPEGQuality above zero re-encodes resampled images as JPEG;
	// otherwise they are stored with Flate.
	JPEGQuality int
}

// Settings select the optimization passes.
type Settings struct {
	RemoveUnused     bool
	DedupStreams     bool
	DedupObjects     bool
	CompressStreams  bool
	DownsampleImages DownsampleImages
	StripMetadata    bool

	Logger observability.Logger
}

// DefaultSettings enables every pass except metadata removal and
// resamples images shown above 225 PPI down to 150 PPI.
func DefaultSettings() Settings {
	return Settings{
		RemoveUnused:    true,
		DedupStreams:    true,
		DedupObjects:    true,
		CompressStreams: true,
		DownsampleImages: DownsampleImages{
			MaxPPI:      225,
			ResamplePPI: 150,
			JPEGQuality: 80,
		},
	}
}

// Report summarizes what Optimize changed. Byte counts are the
// serialized size of all objects, without file structure overhead.
type Report struct {
	ObjectsRemoved    int
	StreamsMerged     int
	ObjectsMerged     int
	ResourcesRemoved  int
	StreamsCompressed int
	ImagesResampled   int
	BytesBefore       int64
	BytesAfter        int64
}

// Optimizer runs the passes of its settings.
type Optimizer struct {
	settings Settings
	log      observability.Logger
}

func New(s Settings) *Optimizer {
	return &Optimizer{settings: s, log: observability.OrNop(s.Logger)}
}

// Optimize runs the passes selected by s on doc. A document without
// pages is left untouched. Callers sharing doc between goroutines hold
// its write lock.
func Optimize(ctx context.Context, doc *pdf.Doc, s Settings) (Report, error) {
	return New(s).Optimize(ctx, doc)
}

func (o *Optimizer) Optimize(ctx context.Context, doc *pdf.Doc) (Report, error) {
	var rep Report
	if doc.PageCount() == 0 {
		return rep, nil
	}
	ctx, span := observability.StartSpan(ctx, "optimize")
	defer span.Finish()

	sd := doc.SDF()
	if err := sd.LoadAll(); err != nil {
		span.SetError(err)
		return rep, fmt.Errorf("optimize: load objects: %w", err)
	}
	rep.BytesBefore = size(sd)
	s := o.settings

	passes := []struct {
		name string
		on   bool
		run  func() error
	}{
		{"strip metadata", s.StripMetadata, func() error { stripMetadata(doc); return nil }},
		{"downsample images", s.DownsampleImages.MaxPPI > 0, func() (err error) {
			rep.ImagesResampled, err = o.downsampleImages(ctx, doc)
			return err
		}},
		{"remove unused resources", s.RemoveUnused, func() (err error) {
			rep.ResourcesRemoved, err = o.pruneResources(ctx, doc)
			return err
		}},
		{"merge duplicate streams", s.DedupStreams, func() (err error) {
			rep.StreamsMerged, err = combineObjects(ctx, sd, true, false)
			return err
		}},
		{"merge duplicate objects", s.DedupObjects, func() (err error) {
			rep.ObjectsMerged, err = combineObjects(ctx, sd, false, true)
			return err
		}},
		{"remove unreachable objects", s.RemoveUnused, func() (err error) {
			rep.ObjectsRemoved, err = removeUnreachable(sd)
			return err
		}},
		{"compress streams", s.CompressStreams, func() (err error) {
			rep.StreamsCompressed, err = o.compressStreams(ctx, doc)
			return err
		}},
	}
	for _, p := range passes {
		if !p.on {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := p.run(); err != nil {
			span.SetError(err)
			return rep, fmt.Errorf("optimize: %s: %w", p.name, err)
		}
		o.log.Debug("optimize: pass done", observability.String("pass", p.name))
	}
	rep.BytesAfter = size(sd)
	return rep, nil
}

// size sums the serialized size of every in-use object.
func size(sd *sdf.Doc) int64 {
	var n int64
	for _, r := range sd.Refs() {
		if o, err := sd.Get(r); err == nil {
			n += int64(len(sdf.Bytes(o)))
		}
	}
	return n
}

// stripMetadata removes XMP streams, page piece dictionaries and the
// document information dictionary.
func stripMetadata(doc *pdf.Doc) {
	sd := doc.SDF()
	if root := sd.Root(); root != nil {
		root.Delete("Metadata")
		root.Delete("PieceInfo")
	}
	sd.Trailer().Delete("Info")
	for _, p := range doc.Pages() {
		p.Dict.Delete("Metadata")
		p.Dict.Delete("PieceInfo")
	}
}
