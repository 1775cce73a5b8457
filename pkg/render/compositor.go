package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"autogensocial/internal/util"
	"autogensocial/pkg/domain"
)

// Size is a canvas size in pixels.
type Size struct {
	Width  int
	Height int
}

var aspectRatios = map[string]Size{
	"square":    {1080, 1080},
	"portrait":  {1080, 1350},
	"landscape": {1200, 628},
	"story":     {1080, 1920},
}

// Dimensions returns the canvas size for an aspect ratio tag. Unknown tags are square.
func Dimensions(aspectRatio string) Size {
	if s, ok := aspectRatios[strings.ToLower(strings.TrimSpace(aspectRatio))]; ok {
		return s
	}
	return aspectRatios["square"]
}

const (
	defaultFontFamily   = "Arial"
	defaultFontSize     = 48
	defaultTextColor    = "#fff"
	defaultOverlayColor = "#000"
	defaultOverlayAlpha = 0.5
	defaultOutlineColor = "#000"
	defaultOutlineWidth = 2.0
	textWidthRatio      = 0.8
	lineHeightRatio     = 1.2
	maxBackgroundBytes  = 20 << 20
)

// Compositor draws quote images: background, optional overlay, wrapped text
// with an optional outline. Output is PNG.
type Compositor struct {
	fonts      *FontRegistry
	httpClient *http.Client
}

// NewCompositor builds a Compositor. httpClient fetches remote backgrounds.
func NewCompositor(fonts *FontRegistry, httpClient *http.Client) *Compositor {
	if fonts == nil {
		fonts = NewFontRegistry(nil)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Compositor{fonts: fonts, httpClient: httpClient}
}

// Render draws text over the style described by tpl and returns PNG bytes.
func (c *Compositor) Render(ctx context.Context, tpl domain.ImageTemplate, text string) ([]byte, error) {
	size := Dimensions(tpl.AspectRatio)
	dc := gg.NewContext(size.Width, size.Height)
	theme := tpl.Theme()

	c.drawBackground(ctx, dc, tpl, theme, size)

	var overlay *domain.OverlayBox
	var textStyle *domain.TextStyle
	if theme != nil {
		overlay = theme.OverlayBox
		textStyle = theme.TextStyle
	}
	if overlay != nil {
		alpha := defaultOverlayAlpha
		if overlay.Transparency != nil {
			alpha = *overlay.Transparency
		}
		dc.SetColor(withAlpha(colorOr(overlay.Color, defaultOverlayColor), alpha))
		dc.DrawRectangle(0, 0, float64(size.Width), float64(size.Height))
		dc.Fill()
	}

	if err := c.drawText(dc, textStyle, overlay, size, text); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compositor) drawBackground(ctx context.Context, dc *gg.Context, tpl domain.ImageTemplate, theme *domain.Theme, size Size) {
	fill := func(col color.Color) {
		dc.SetColor(col)
		dc.DrawRectangle(0, 0, float64(size.Width), float64(size.Height))
		dc.Fill()
	}
	switch {
	case tpl.MediaType == "online" && strings.TrimSpace(tpl.SetURL) != "":
		img, err := c.fetchImage(ctx, tpl.SetURL)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("background image unavailable, using black", "url", tpl.SetURL, "err", err)
			fill(color.Black)
			return
		}
		scaled := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		dc.DrawImage(scaled, 0, 0)
	case tpl.MediaType == "color" && theme != nil && strings.TrimSpace(theme.BackgroundColor) != "":
		fill(colorOr(theme.BackgroundColor, "#000"))
	default:
		fill(color.Black)
	}
}

func (c *Compositor) fetchImage(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch background: %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxBackgroundBytes))
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}
	return img, nil
}

func (c *Compositor) drawText(dc *gg.Context, style *domain.TextStyle, overlay *domain.OverlayBox, size Size, text string) error {
	var f domain.Font
	if style != nil && style.Font != nil {
		f = *style.Font
	}
	px := int(f.Size)
	if px <= 0 {
		px = defaultFontSize
	}
	family := f.Family
	if strings.TrimSpace(family) == "" {
		family = defaultFontFamily
	}
	face, err := c.fonts.Face(family, f.Weight, f.Style, float64(px))
	if err != nil {
		return fmt.Errorf("load font: %w", err)
	}
	dc.SetFontFace(face)

	opacity := 1.0
	alignment := "center"
	var outline *domain.Outline
	if style != nil {
		if style.Transparency != nil {
			opacity = *style.Transparency
		}
		if strings.TrimSpace(style.Alignment) != "" {
			alignment = style.Alignment
		}
		outline = style.Outline
	}
	ax := anchorX(alignment)

	x := float64(size.Width) / 2
	y := float64(size.Height) / 2
	if overlay != nil {
		switch overlay.VerticalLocation {
		case "top":
			y = float64(size.Height) * 0.25
		case "bottom":
			y = float64(size.Height) * 0.75
		}
	}
	lineHeight := float64(px) * lineHeightRatio
	lines := WrapLines(func(s string) float64 {
		w, _ := dc.MeasureString(s)
		return w
	}, text, float64(size.Width)*textWidthRatio)

	if outline != nil {
		width := outline.Width
		if width <= 0 {
			width = defaultOutlineWidth
		}
		// Outline passes overlap; the layer is blended once at the text opacity.
		layer := gg.NewContext(size.Width, size.Height)
		layer.SetFontFace(face)
		layer.SetColor(colorOr(outline.Color, defaultOutlineColor))
		radius := max(1, int(math.Round(width/2)))
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx*dx+dy*dy > radius*radius {
					continue
				}
				drawLines(layer, lines, x+float64(dx), y+float64(dy), lineHeight, ax)
			}
		}
		blendLayer(dc, layer.Image(), opacity)
	}

	dc.SetColor(withAlpha(colorOr(f.Color, defaultTextColor), opacity))
	drawLines(dc, lines, x, y, lineHeight, ax)
	return nil
}

func blendLayer(dc *gg.Context, layer image.Image, opacity float64) {
	dst, ok := dc.Image().(draw.Image)
	if !ok {
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(clamp(opacity, 0, 1)*255 + 0.5)})
	draw.DrawMask(dst, dst.Bounds(), layer, image.Point{}, mask, image.Point{}, draw.Over)
}

func drawLines(dc *gg.Context, lines []string, x, y, lineHeight, ax float64) {
	for i, line := range lines {
		dc.DrawStringAnchored(line, x, y+float64(i)*lineHeight, ax, 0.5)
	}
}

func anchorX(alignment string) float64 {
	switch strings.ToLower(strings.TrimSpace(alignment)) {
	case "left", "start":
		return 0
	case "right", "end":
		return 1
	default:
		return 0.5
	}
}

func colorOr(value, fallback string) color.NRGBA {
	if c, ok := ParseColor(value); ok {
		return c
	}
	if c, ok := ParseColor(fallback); ok && strings.TrimSpace(value) == "" {
		return c
	}
	return color.NRGBA{A: 0xff}
}
