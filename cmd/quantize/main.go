// Command quantize reduces images to a bounded palette and writes
// paletted PNG or GIF output, optionally dithering with error
// diffusion.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/wbrown/imagequant"
	"github.com/wbrown/imagequant/imageutil"
)

var (
	version = "v0.1.0"
	commit  = "unknown"
)

func main() {
	app := &cli.App{
		Name:                   "quantize",
		Usage:                  "reduce images to a bounded color palette",
		ArgsUsage:              "INPUT...",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "colors",
				Aliases: []string{"n"},
				Value:   256,
				Usage:   "maximum palette size (1-256)",
			},
			&cli.IntFlag{
				Name:    "speed",
				Aliases: []string{"s"},
				Value:   4,
				Usage:   "speed/quality trade-off, 1 (best) to 10 (fastest)",
			},
			&cli.StringFlag{
				Name:    "quality",
				Aliases: []string{"q"},
				Usage:   "minimum acceptable quality, like '0.8' or '80%'",
			},
			&cli.StringFlag{
				Name:    "dithering",
				Aliases: []string{"d"},
				Value:   "1",
				Usage:   "error diffusion level, '0' to '1' or a percentage",
			},
			&cli.StringFlag{
				Name:    "palette",
				Aliases: []string{"p"},
				Usage:   "fixed palette (hex codes, R,G,B tuples, or SVG color names); skips palette generation",
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Required: true,
				Usage:    "output file, or directory for multiple inputs",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "png",
				Usage:   "output format: png or gif",
			},
			&cli.UintFlag{
				Name:    "width",
				Aliases: []string{"x"},
				Usage:   "resize input to this width before quantizing",
			},
			&cli.UintFlag{
				Name:    "height",
				Aliases: []string{"y"},
				Usage:   "resize input to this height before quantizing",
			},
			&cli.UintFlag{
				Name:    "upscale",
				Aliases: []string{"u"},
				Value:   1,
				Usage:   "integer upscale factor applied to the output",
			},
			&cli.UintFlag{
				Name:    "threads",
				Aliases: []string{"j"},
				Usage:   "worker goroutines for the parallel phases (default: all CPUs)",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
			},
		},
		Action: run,
	}

	if len(os.Args) == 2 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		fmt.Println("quantize", version)
		fmt.Println("Commit:", commit)
		return
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	inputs := c.Args().Slice()
	if len(inputs) == 0 {
		return errors.New("no input images given")
	}

	format := strings.ToLower(c.String("format"))
	if format != "png" && format != "gif" {
		return fmt.Errorf("unsupported output format %q", format)
	}

	minQuality, err := parsePercent(c.String("quality"))
	if err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	dithering, err := parsePercent(c.String("dithering"))
	if err != nil {
		return fmt.Errorf("dithering: %w", err)
	}

	opts := []imagequant.SessionOption{
		imagequant.WithMaxColors(c.Int("colors")),
		imagequant.WithSpeed(c.Int("speed")),
		imagequant.WithMinQuality(minQuality),
		imagequant.WithDithering(dithering),
	}
	if c.Uint("threads") > 0 {
		opts = append(opts, imagequant.WithWorkers(int(c.Uint("threads"))))
	}
	session, err := imagequant.NewSession(opts...)
	if err != nil {
		return err
	}

	var fixed imagequant.Palette
	if c.IsSet("palette") {
		fixed, err = parsePalette(c.String("palette"))
		if err != nil {
			return err
		}
	}

	outPath := c.String("out")
	outIsDir := false
	if info, err := os.Stat(outPath); err == nil && info.IsDir() {
		outIsDir = true
	}
	if len(inputs) > 1 && !outIsDir {
		return fmt.Errorf("multiple inputs need a directory for --out, got %q", outPath)
	}

	var bar *progressbar.ProgressBar
	if len(inputs) > 1 {
		bar = progressbar.Default(int64(len(inputs)), "quantizing")
	}

	ctx := context.Background()
	for _, input := range inputs {
		if err := processImage(ctx, session, fixed, input, outDest(outPath, outIsDir, input, format), c); err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	return nil
}

// outDest resolves the output path for one input: either the single
// --out file, or a file inside the --out directory named after the
// input with the output format's extension.
func outDest(outPath string, outIsDir bool, input, format string) string {
	if !outIsDir {
		return outPath
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outPath, base+"."+format)
}

func processImage(ctx context.Context, session *imagequant.QuantizationSession, fixed imagequant.Palette, input, output string, c *cli.Context) error {
	img, err := imageutil.LoadImage(input)
	if err != nil {
		return err
	}

	if w, h := int(c.Uint("width")), int(c.Uint("height")); w != 0 || h != 0 {
		// Box sampling downscales cleanly and pre-dither scaling is
		// almost always a downscale.
		img = imaging.Resize(img, w, h, imaging.Box)
	}

	rows := imageutil.NewImageRows(img)

	var res *imagequant.RemapResult
	if fixed != nil {
		res, err = session.Remap(ctx, rows, fixed)
	} else {
		res, err = session.QuantizeAndRemap(ctx, rows)
		if errors.Is(err, imagequant.ErrQualityBelowThreshold) {
			log.Printf("warning: %s: %v", input, err)
			err = nil
		}
	}
	if err != nil {
		return err
	}

	out := upscaled(imageutil.Paletted(res), int(c.Uint("upscale")))
	return imageutil.SaveImage(out, output)
}

// upscaled applies an integer nearest-neighbor upscale, keeping the
// result paletted so encoders preserve the color table.
func upscaled(img *image.Paletted, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	big := imaging.Resize(img, img.Bounds().Dx()*factor, 0, imaging.NearestNeighbor)
	out := image.NewPaletted(big.Bounds(), img.Palette)
	for y := big.Bounds().Min.Y; y < big.Bounds().Max.Y; y++ {
		for x := big.Bounds().Min.X; x < big.Bounds().Max.X; x++ {
			out.Set(x, y, big.At(x, y))
		}
	}
	return out
}
