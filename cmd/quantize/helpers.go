package main

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"

	"github.com/wbrown/imagequant"
)

// parsePercent takes a string like "0.5" or "50%" and returns a float
// in [0, 1]. An empty string returns 0.
func parsePercent(arg string) (float64, error) {
	if arg == "" {
		return 0, nil
	}
	if strings.HasSuffix(arg, "%") {
		f64, err := strconv.ParseFloat(arg[:len(arg)-1], 64)
		if err != nil {
			return 0, err
		}
		return f64 / 100.0, nil
	}
	return strconv.ParseFloat(arg, 64)
}

// parsePalette turns a space-separated list of color specs into a
// fixed palette. Each spec may be a hex code, an R,G,B tuple, a single
// grayscale number 0-255, or an SVG color name.
func parsePalette(arg string) (imagequant.Palette, error) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty palette")
	}
	pal := make(imagequant.Palette, len(fields))
	for i, spec := range fields {
		c, err := parseColor(spec)
		if err != nil {
			return nil, err
		}
		pal[i] = imagequant.PaletteEntry{Color: c}
	}
	return pal, nil
}

func parseColor(spec string) (imagequant.Color, error) {
	if strings.Count(spec, ",") == 2 {
		var r, g, b uint8
		if n, err := fmt.Sscanf(spec, "%d,%d,%d", &r, &g, &b); err != nil || n != 3 {
			return imagequant.Color{}, fmt.Errorf("%s is not a valid RGB tuple, example: 25,200,150", spec)
		}
		return imagequant.Color{R: r, G: g, B: b, A: 255}, nil
	}

	if c, err := hexToColor(spec); err == nil {
		return c, nil
	}

	if n, err := strconv.Atoi(spec); err == nil {
		if n < 0 || n > 255 {
			return imagequant.Color{}, fmt.Errorf("single numbers like %d must be in the range 0-255", n)
		}
		return imagequant.Color{R: uint8(n), G: uint8(n), B: uint8(n), A: 255}, nil
	}

	if named, ok := colornames.Map[strings.ToLower(spec)]; ok {
		return imagequant.Color{R: named.R, G: named.G, B: named.B, A: 255}, nil
	}

	return imagequant.Color{}, fmt.Errorf("%s not recognized as a hex code, RGB tuple, number 0-255, or SVG color name", spec)
}

func hexToColor(hex string) (imagequant.Color, error) {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b uint8
	n, err := fmt.Sscanf(strings.ToLower(hex), "%02x%02x%02x", &r, &g, &b)
	if err != nil {
		return imagequant.Color{}, err
	}
	if n != 3 {
		return imagequant.Color{}, fmt.Errorf("%s is not a hex color", hex)
	}
	return imagequant.Color{R: r, G: g, B: b, A: 255}, nil
}
