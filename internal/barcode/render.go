package barcode

import (
	"bytes"
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"
	"github.com/gosimple/slug"
)

// Rendering defaults, matching the original scanner deployment: a wide
// quiet zone so handheld scanners lock on, and tall modules.
const (
	DefaultQuietZone    = 15
	DefaultModuleWidth  = 2
	DefaultModuleHeight = 20
	DefaultFontFamily   = "sans-serif"
	defaultFontSize     = 12
	labelPadding        = 4
)

// Options controls barcode geometry and label styling.
type Options struct {
	// QuietZone is the blank margin on each side, in modules.
	QuietZone int

	// ModuleWidth is the width of a single module in pixels.
	ModuleWidth int

	// ModuleHeight is the bar height in module widths.
	ModuleHeight int

	// FontFamily is substituted into the label's text styling.
	FontFamily string
}

func (o Options) withDefaults() Options {
	if o.QuietZone == 0 {
		o.QuietZone = DefaultQuietZone
	}
	if o.ModuleWidth == 0 {
		o.ModuleWidth = DefaultModuleWidth
	}
	if o.ModuleHeight == 0 {
		o.ModuleHeight = DefaultModuleHeight
	}
	if o.FontFamily == "" {
		o.FontFamily = DefaultFontFamily
	}
	return o
}

// Render writes a Code 128 SVG barcode embedding code, with a
// human-readable label beneath the bars, then applies the cosmetic font
// substitution to the text styling.
func Render(w io.Writer, code, label string, opts Options) error {
	opts = opts.withDefaults()

	widths, err := moduleWidths(code)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", code, err)
	}

	totalModules := 0
	for _, width := range widths {
		totalModules += width
	}

	imageWidth := (2*opts.QuietZone + totalModules) * opts.ModuleWidth
	barHeight := opts.ModuleHeight * opts.ModuleWidth
	imageHeight := barHeight + defaultFontSize + 2*labelPadding

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(imageWidth, imageHeight)
	canvas.Rect(0, 0, imageWidth, imageHeight, "fill:white")

	x := opts.QuietZone * opts.ModuleWidth
	for i, width := range widths {
		px := width * opts.ModuleWidth
		// Even indices are bars, odd indices are spaces.
		if i%2 == 0 {
			canvas.Rect(x, 0, px, barHeight, "fill:black")
		}
		x += px
	}

	if label != "" {
		canvas.Text(imageWidth/2, barHeight+defaultFontSize+labelPadding, label,
			fmt.Sprintf("text-anchor:middle;font-size:%dpx;fill:black", defaultFontSize))
	}
	canvas.End()

	_, err = w.Write(SubstituteFont(buf.Bytes(), opts.FontFamily))
	return err
}

// SubstituteFont injects a font-family into the style attribute of every
// text element in a rendered SVG, leaving all other lines untouched.
func SubstituteFont(svgData []byte, family string) []byte {
	replacement := []byte(fmt.Sprintf(`style="font-family: %s;`, family))
	lines := bytes.Split(svgData, []byte("\n"))
	for i, line := range lines {
		if bytes.Contains(line, []byte("<text")) {
			lines[i] = bytes.Replace(line, []byte(`style="`), replacement, 1)
		}
	}
	return bytes.Join(lines, []byte("\n"))
}

// Filename returns the slugified image filename for an item title.
func Filename(title string) string {
	return slug.Make(title) + ".svg"
}
