package overlays

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/keagan/vortex/internal/imaging"
)

const (
	backgroundPadding = 16
	backgroundRadius  = 8
	shadowOffset      = 2
	textBounce        = 20.0
)

// TextStyle controls how a text overlay is painted.
type TextStyle struct {
	FontSize    float64     `yaml:"font_size"`
	Color       color.NRGBA `yaml:"-"`
	Background  color.NRGBA `yaml:"-"` // zero alpha disables the box
	StrokeColor color.NRGBA `yaml:"-"`
	StrokeWidth float64     `yaml:"stroke_width"`
	Shadow      bool        `yaml:"shadow"`
	Bold        bool        `yaml:"bold"`
	Italic      bool        `yaml:"italic"`
}

// DefaultTextStyle is white 48px text with a thin black stroke and shadow.
func DefaultTextStyle() TextStyle {
	return TextStyle{
		FontSize:    48,
		Color:       color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		StrokeColor: color.NRGBA{A: 255},
		StrokeWidth: 2,
		Shadow:      true,
	}
}

// TextOverlay is a line of animated text.
type TextOverlay struct {
	ID   int
	Text string
	Placement
	Window
	Style TextStyle
}

// OverlayID implements Overlay.
func (o *TextOverlay) OverlayID() int { return o.ID }

// Active implements Overlay.
func (o *TextOverlay) Active(t time.Duration) bool { return o.Window.Active(t) }

// State resolves the text overlay at t on a frame of the given size.
func (o *TextOverlay) State(t time.Duration, width, height int) State {
	s := animate(o.Placement, o.Window, t, float64(width), float64(height), o.Style.FontSize)
	s.Text = o.Text
	p := o.EntryProgress(t)

	switch o.Animation {
	case AnimTypewriter:
		runes := []rune(o.Text)
		s.Text = string(runes[:int(math.Floor(float64(len(runes))*p))])
	case AnimBounce:
		s.Y += math.Sin(p*math.Pi*3) * textBounce
	}
	return s
}

// Draw paints the overlay onto dst as it appears at t.
func (o *TextOverlay) Draw(dst *image.NRGBA, t time.Duration) {
	b := dst.Bounds()
	s := o.State(t, b.Dx(), b.Dy())
	if !s.Visible || s.Text == "" {
		return
	}
	layer, err := renderText(s.Text, o.Style, o.Style.FontSize*s.Scale)
	if err != nil || layer == nil {
		return
	}
	drawLayer(dst, layer, s.X, s.Y, 1, s.Rotation, s.Alpha)
}

// renderText rasterises text into a tight layer holding the background box,
// shadow, stroke and fill.
func renderText(text string, style TextStyle, size float64) (*image.NRGBA, error) {
	if size < 1 {
		return nil, nil
	}
	face, err := faceFor(style.Bold, style.Italic, size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	textW := font.MeasureString(face, text).Ceil()
	textH := ascent + metrics.Descent.Ceil()

	pad := 0
	if style.Background.A > 0 {
		pad = backgroundPadding
	}
	margin := int(math.Ceil(style.StrokeWidth)) + shadowOffset
	layer := imaging.New(textW+2*(pad+margin), textH+2*(pad+margin))

	if pad > 0 {
		box := image.Rect(margin, margin, margin+textW+2*pad, margin+textH+2*pad)
		fillRoundedRect(layer, box, backgroundRadius, style.Background)
	}

	origin := fixed.P(margin+pad, margin+pad+ascent)
	drawString := func(c color.Color, dx, dy int) {
		d := font.Drawer{
			Dst:  layer,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  origin.Add(fixed.P(dx, dy)),
		}
		d.DrawString(text)
	}

	if style.Shadow {
		drawString(color.NRGBA{A: 128}, shadowOffset, shadowOffset)
	}
	if w := int(math.Round(style.StrokeWidth)); w > 0 {
		for dy := -w; dy <= w; dy++ {
			for dx := -w; dx <= w; dx++ {
				if dx*dx+dy*dy <= w*w && (dx != 0 || dy != 0) {
					drawString(style.StrokeColor, dx, dy)
				}
			}
		}
	}
	drawString(style.Color, 0, 0)
	return layer, nil
}

var (
	fontsOnce sync.Once
	fonts     map[[2]bool]*opentype.Font
	fontsErr  error
)

func loadFonts() {
	fonts = make(map[[2]bool]*opentype.Font)
	sources := map[[2]bool][]byte{
		{false, false}: goregular.TTF,
		{true, false}:  gobold.TTF,
		{false, true}:  goitalic.TTF,
		{true, true}:   gobolditalic.TTF,
	}
	for k, ttf := range sources {
		f, err := opentype.Parse(ttf)
		if err != nil {
			fontsErr = fmt.Errorf("failed to parse built-in font: %w", err)
			return
		}
		fonts[k] = f
	}
}

// faceFor builds a face for one render. Faces keep glyph buffers and are
// not shared between goroutines.
func faceFor(bold, italic bool, size float64) (font.Face, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fontsErr
	}
	f, err := opentype.NewFace(fonts[[2]bool{bold, italic}], &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return f, nil
}
