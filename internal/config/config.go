package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const DefaultFileName = "config.json"

// Color is an RGB triple.
type Color [3]uint8

// Config holds the user-adjustable settings of the monitor.
type Config struct {
	Device  DeviceConfig
	Display DisplayConfig

	// Source is the file the configuration was read from, or "<defaults>".
	Source string
}

// DeviceConfig selects the pointing device.
type DeviceConfig struct {
	URI         string
	Description string
	IdleMS      int
}

// DisplayConfig sizes and colors the crosshair view.
type DisplayConfig struct {
	Width           int
	Height          int
	TargetSize      int
	FrameRate       int
	BackgroundColor Color
	TargetColor     Color
	TextColor       Color
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			URI:         "usb:046d:c52b",
			Description: "Any available pointing device",
			IdleMS:      1,
		},
		Display: DisplayConfig{
			Width:           1200,
			Height:          800,
			TargetSize:      25,
			FrameRate:       60,
			BackgroundColor: Color{20, 20, 25},
			TargetColor:     Color{100, 200, 255},
			TextColor:       Color{220, 220, 220},
		},
		Source: "<defaults>",
	}
}

// IdleTimeout is how long one pump of the device may wait for events.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.Device.IdleMS) * time.Millisecond
}

// FrameInterval is the time between two rendered frames.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Display.FrameRate)
}

// Load reads path and merges it onto Default. The returned Config is always
// usable: on error it holds the defaults, or the defaults plus every valid
// field when only some fields were rejected.
func Load(path string) (Config, error) {
	candidate := strings.TrimSpace(path)
	if candidate == "" {
		candidate = DefaultFileName
	}

	data, err := os.ReadFile(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), fmt.Errorf("config file %q not found", candidate)
		}
		return Default(), fmt.Errorf("read config file %q: %w", candidate, err)
	}

	cfg, err := Parse(data)
	if cfg.Source == "" {
		cfg.Source = candidate
	}
	if err != nil {
		return cfg, fmt.Errorf("config file %q: %w", candidate, err)
	}
	return cfg, nil
}

type fileConfig struct {
	Device *struct {
		URI         *string `json:"uri"`
		Description *string `json:"description"`
		IdleMS      *int    `json:"idle_ms"`
	} `json:"device"`
	Display *struct {
		Width           *int   `json:"width"`
		Height          *int   `json:"height"`
		TargetSize      *int   `json:"target_size"`
		FrameRate       *int   `json:"frame_rate"`
		BackgroundColor *[]int `json:"background_color"`
		TargetColor     *[]int `json:"target_color"`
		TextColor       *[]int `json:"text_color"`
	} `json:"display"`
}

// Parse merges a JSON document onto Default field by field. Fields with
// invalid values keep their default and are reported in the joined error. A
// malformed document yields Default unchanged.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = ""

	var errs []error
	if d := fc.Device; d != nil {
		if d.URI != nil {
			if strings.TrimSpace(*d.URI) == "" {
				errs = append(errs, errors.New("device.uri must not be empty"))
			} else {
				cfg.Device.URI = strings.TrimSpace(*d.URI)
			}
		}
		if d.Description != nil {
			cfg.Device.Description = *d.Description
		}
		errs = appendPositive(errs, "device.idle_ms", d.IdleMS, &cfg.Device.IdleMS)
	}
	if d := fc.Display; d != nil {
		errs = appendPositive(errs, "display.width", d.Width, &cfg.Display.Width)
		errs = appendPositive(errs, "display.height", d.Height, &cfg.Display.Height)
		errs = appendPositive(errs, "display.target_size", d.TargetSize, &cfg.Display.TargetSize)
		errs = appendPositive(errs, "display.frame_rate", d.FrameRate, &cfg.Display.FrameRate)
		errs = appendColor(errs, "display.background_color", d.BackgroundColor, &cfg.Display.BackgroundColor)
		errs = appendColor(errs, "display.target_color", d.TargetColor, &cfg.Display.TargetColor)
		errs = appendColor(errs, "display.text_color", d.TextColor, &cfg.Display.TextColor)
	}

	return cfg, errors.Join(errs...)
}

func appendPositive(errs []error, key string, v *int, dst *int) []error {
	if v == nil {
		return errs
	}
	if *v <= 0 {
		return append(errs, fmt.Errorf("%s must be positive, got %d", key, *v))
	}
	*dst = *v
	return errs
}

func appendColor(errs []error, key string, v *[]int, dst *Color) []error {
	if v == nil {
		return errs
	}
	c, err := ParseColor(*v)
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", key, err))
	}
	*dst = c
	return errs
}

// ParseColor converts three integers in 0..255 to a Color.
func ParseColor(v []int) (Color, error) {
	if len(v) != 3 {
		return Color{}, fmt.Errorf("color needs 3 components, got %d", len(v))
	}
	var c Color
	for i, n := range v {
		if n < 0 || n > 255 {
			return Color{}, fmt.Errorf("color component %d out of range: %d", i, n)
		}
		c[i] = uint8(n)
	}
	return c, nil
}
