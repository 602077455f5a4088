// Package render rasterizes pages into images and exports them as PNG,
// JPEG, TIFF or BMP files.
package render

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
)

// PageBox selects the page box that becomes the image area.
type PageBox int

const (
	BoxCrop PageBox = iota
	BoxMedia
)

// Format is an image file format.
type Format int

const (
	PNG Format = iota
	JPEG
	TIFF
	BMP
)

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case TIFF:
		return "tiff"
	case BMP:
		return "bmp"
	}
	return "png"
}

// ParseFormat accepts a format name or file extension such as "jpg" or
// ".tif".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return PNG, fmt.Errorf("render: unknown image format %q", s)
}

// FormatForFile returns the format matching the extension of path.
func FormatForFile(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Options control rasterization.
type Options struct {
	// DPI is the output resolution. Width and Height, when set, override
	// it: the page is scaled to fit the given size keeping its aspect.
	DPI    float64
	Width  int
	Height int

	PageBox PageBox
	// Rotate adds a clockwise rotation in multiples of 90 degrees to the
	// page's own rotation.
	Rotate int

	AntiAlias       bool
	Background      color.Color
	DrawAnnotations bool

	// JPEGQuality is used by Export for JPEG output.
	JPEGQuality int
}

// DefaultOptions returns 92 DPI anti-aliased rendering of the crop box on
// white with annotations.
func DefaultOptions() Options {
	return Options{
		DPI:             92,
		PageBox:         BoxCrop,
		AntiAlias:       true,
		Background:      color.White,
		DrawAnnotations: true,
		JPEGQuality:     85,
	}
}
