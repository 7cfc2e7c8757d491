package imagequant_test

import (
	"context"
	"fmt"
	"log"

	"github.com/wbrown/imagequant"
)

// gradientSource is a tiny in-memory image for the example.
type gradientSource struct{ width, height int }

func (g gradientSource) Size() (int, int) { return g.width, g.height }

func (g gradientSource) Row(y int) []imagequant.Color {
	row := make([]imagequant.Color, g.width)
	for x := range row {
		v := uint8(255 * x / (g.width - 1))
		row[x] = imagequant.Color{R: v, G: v, B: v, A: 255}
	}
	return row
}

func Example() {
	session, err := imagequant.NewSession(
		imagequant.WithMaxColors(4),
		imagequant.WithDithering(0),
	)
	if err != nil {
		log.Fatal(err)
	}

	res, err := session.QuantizeAndRemap(context.Background(), gradientSource{width: 16, height: 4})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("palette size:", len(res.Palette))
	fmt.Println("pixels:", len(res.Indices))
	// Output:
	// palette size: 4
	// pixels: 64
}
