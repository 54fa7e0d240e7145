package display

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/plugin"
)

func TestFileControllerWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	c := NewFileController(path, 100, 60)

	img := image.NewGray(image.Rect(0, 0, 100, 60))
	require.NoError(t, c.Display(img))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
	assert.Equal(t, 60, decoded.Bounds().Dy())
}

func TestFileControllerReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	c := NewFileController(path, 10, 10)

	require.NoError(t, c.Display(image.NewGray(image.Rect(0, 0, 10, 10))))
	require.NoError(t, c.Display(image.NewGray(image.Rect(0, 0, 20, 20))))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 20, decoded.Bounds().Dx())
}

func TestErrorImageMatchesDevice(t *testing.T) {
	img := ErrorImage(plugin.DeviceConfig{Width: 320, Height: 240})
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())

	// border must be black
	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	assert.Zero(t, gray.GrayAt(0, 0).Y)
	assert.Zero(t, gray.GrayAt(319, 239).Y)
}

func TestErrorImageDefaultsDimensions(t *testing.T) {
	img := ErrorImage(plugin.DeviceConfig{})
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func TestDrawTextProducesInk(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 60))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	DrawText(img, "12:34", 4, 4, 3, color.Gray{Y: 0})

	dark := 0
	for _, pix := range img.Pix {
		if pix < 128 {
			dark++
		}
	}
	assert.Positive(t, dark)
}

func TestDrawTextCenteredStaysInBounds(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 40))
	// Oversized text must not panic even though it overflows the bounds.
	DrawTextCentered(img, "A VERY LONG BANNER LINE", 10, 4, color.Gray{Y: 0})
}
