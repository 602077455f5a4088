package filters

import "fmt"

const (
	// MaxImageDimension caps image width and height. Damaged files lie
	// about sizes.
	MaxImageDimension = 32768
	// MaxImagePixels bounds the total pixel count (64 MP).
	MaxImagePixels int64 = 64 * 1024 * 1024
)

// ValidateImageBounds rejects image sizes that are empty or too large to
// allocate.
func ValidateImageBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > MaxImageDimension || height > MaxImageDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if pixels := int64(width) * int64(height); pixels > MaxImagePixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, MaxImagePixels)
	}
	return nil
}
