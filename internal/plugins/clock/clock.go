// Package clock is the built-in continuous plugin: it renders the current
// time and pushes a fresh frame whenever the displayed value changes.
package clock

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/inkframe/inkframe/internal/display"
	"github.com/inkframe/inkframe/internal/plugin"
)

// ID is the registry factory name.
const ID = "clock"

// Plugin renders a digital clock. One value per refresh cycle; frames are
// pushed only when the rendered text actually changes so an idle minute does
// not rewrite the panel sixty times.
type Plugin struct{}

// New is the plugin factory.
func New() (plugin.ContentPlugin, error) {
	return &Plugin{}, nil
}

func (p *Plugin) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		ID:          ID,
		Name:        "Clock",
		Version:     "1.0.0",
		Author:      "inkframe",
		Description: "Digital clock with optional date line",
		Mode:        plugin.ModeContinuous,
		Schema: []plugin.FieldSpec{
			{Key: "timezone", Type: plugin.FieldString, Label: "Timezone", Default: "UTC"},
			{Key: "format", Type: plugin.FieldEnum, Label: "Format", Default: "24h", Options: []plugin.Option{
				{Value: "24h", Label: "24-hour"},
				{Value: "12h", Label: "12-hour"},
			}},
			{Key: "show_seconds", Type: plugin.FieldBoolean, Label: "Show seconds", Default: false},
			{Key: "show_date", Type: plugin.FieldBoolean, Label: "Show date", Default: true},
		},
	}
}

// ValidateSettings checks what the schema cannot: the timezone must resolve
// against the host tz database.
func (p *Plugin) ValidateSettings(settings map[string]any) error {
	if tz, ok := settings["timezone"].(string); ok && tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("unknown timezone %q", tz)
		}
	}
	return nil
}

// RunActive loops until ctx is cancelled, rendering once per second and
// pushing a frame whenever the displayed text changes.
func (p *Plugin) RunActive(ctx context.Context, sink plugin.FrameSink, settings map[string]any, dev plugin.DeviceConfig) error {
	opts := parseSettings(settings)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last string
	render := func(now time.Time) error {
		timeText, dateText := format(now.In(opts.loc), opts)
		key := timeText + "|" + dateText
		if key == last {
			return nil
		}
		last = key
		return sink(frame(timeText, dateText, dev))
	}

	if err := render(time.Now()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := render(now); err != nil {
				return err
			}
		}
	}
}

type options struct {
	loc         *time.Location
	twelveHour  bool
	showSeconds bool
	showDate    bool
}

func parseSettings(settings map[string]any) options {
	opts := options{loc: time.UTC, showDate: true}
	if tz, ok := settings["timezone"].(string); ok && tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			opts.loc = loc
		}
	}
	if f, ok := settings["format"].(string); ok {
		opts.twelveHour = f == "12h"
	}
	if v, ok := settings["show_seconds"].(bool); ok {
		opts.showSeconds = v
	}
	if v, ok := settings["show_date"].(bool); ok {
		opts.showDate = v
	}
	return opts
}

func format(now time.Time, opts options) (timeText, dateText string) {
	layout := "15:04"
	if opts.twelveHour {
		layout = "3:04"
	}
	if opts.showSeconds {
		layout += ":05"
	}
	if opts.twelveHour {
		layout += " PM"
	}
	timeText = now.Format(layout)
	if opts.showDate {
		dateText = now.Format("Monday, 2 January 2006")
	}
	return timeText, dateText
}

func frame(timeText, dateText string, dev plugin.DeviceConfig) image.Image {
	w, h := dev.Width, dev.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 480
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	black := color.Gray{Y: 0}

	// Scale the time to roughly two thirds of the panel width.
	scale := (w * 2 / 3) / display.TextWidth(timeText)
	if scale < 1 {
		scale = 1
	}
	y := h/2 - display.TextHeight*scale/2
	if dateText != "" {
		y -= display.TextHeight
	}
	display.DrawTextCentered(img, timeText, y, scale, black)

	if dateText != "" {
		dateScale := scale / 3
		if dateScale < 1 {
			dateScale = 1
		}
		display.DrawTextCentered(img, dateText, y+display.TextHeight*scale+display.TextHeight, dateScale, black)
	}
	return img
}
