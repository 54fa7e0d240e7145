// Package display defines the output device boundary. The physical panel
// driver lives behind Controller; everything in this repo talks to that
// interface and never to hardware.
package display

import (
	"fmt"
	"image"
	"image/png"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xflog "github.com/inkframe/inkframe/internal/log"
)

// Controller is the shared output device. Both calls are treated as slow and
// potentially blocking; callers must never invoke them from more than one
// place concurrently. The orchestrator is the single writer.
type Controller interface {
	Display(img image.Image) error
	Clear() error
}

// FileController renders the panel to a PNG file. It stands in for a real
// e-ink driver during development and doubles as the default sink.
type FileController struct {
	path   string
	width  int
	height int
	logger zerolog.Logger
}

// NewFileController writes each displayed frame atomically to path.
func NewFileController(path string, width, height int) *FileController {
	return &FileController{
		path:   path,
		width:  width,
		height: height,
		logger: xflog.WithComponent("display"),
	}
}

// Display writes the frame as a PNG, atomically replacing the previous one.
func (c *FileController) Display(img image.Image) error {
	pending, err := renameio.NewPendingFile(c.path)
	if err != nil {
		return fmt.Errorf("create pending frame file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			c.logger.Debug().Err(err).Msg("cleanup pending frame file")
		}
	}()

	if err := png.Encode(pending, img); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace frame: %w", err)
	}
	return nil
}

// Clear writes an all-white frame.
func (c *FileController) Clear() error {
	return c.Display(blank(c.width, c.height))
}
