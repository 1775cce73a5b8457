package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// FontRegistry resolves CSS-like font descriptions to TrueType faces.
// Files maps a family name, optionally suffixed with ":bold", ":italic" or
// ":bold-italic", to a TTF path. Unknown families use the Go font family.
type FontRegistry struct {
	files map[string]string

	mu     sync.Mutex
	parsed map[string]*truetype.Font
}

func NewFontRegistry(files map[string]string) *FontRegistry {
	normalized := make(map[string]string, len(files))
	for k, v := range files {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &FontRegistry{files: normalized, parsed: make(map[string]*truetype.Font)}
}

// Face returns a face of size px (1px = 1pt at 72 DPI).
func (r *FontRegistry) Face(family, weight, style string, size float64) (font.Face, error) {
	f, err := r.font(family, isBold(weight), isItalic(style))
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone}), nil
}

func (r *FontRegistry) font(family string, bold, italic bool) (*truetype.Font, error) {
	variant := variantName(bold, italic)
	family = strings.ToLower(strings.TrimSpace(family))

	path := ""
	if family != "" {
		if p, ok := r.files[family+":"+variant]; ok && variant != "" {
			path = p
		} else if p, ok := r.files[family]; ok {
			path = p
		}
	}
	key := "go:" + variant
	if path != "" {
		key = "file:" + path
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.parsed[key]; ok {
		return f, nil
	}
	data := builtinFont(bold, italic)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", path, err)
		}
		data = raw
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", key, err)
	}
	r.parsed[key] = f
	return f, nil
}

func variantName(bold, italic bool) string {
	switch {
	case bold && italic:
		return "bold-italic"
	case bold:
		return "bold"
	case italic:
		return "italic"
	default:
		return ""
	}
}

func builtinFont(bold, italic bool) []byte {
	switch {
	case bold && italic:
		return gobolditalic.TTF
	case bold:
		return gobold.TTF
	case italic:
		return goitalic.TTF
	default:
		return goregular.TTF
	}
}

func isBold(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	if w == "bold" || w == "bolder" {
		return true
	}
	n, err := strconv.Atoi(w)
	return err == nil && n >= 600
}

func isItalic(style string) bool {
	s := strings.ToLower(strings.TrimSpace(style))
	return s == "italic" || s == "oblique"
}
