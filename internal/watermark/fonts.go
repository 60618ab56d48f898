package watermark

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// GlyphSource is one font of the registry: it reports rune coverage and builds faces.
type GlyphSource interface {
	HasGlyph(r rune) bool
	NewFace(size float64) font.Face
}

type ttfSource struct {
	f *truetype.Font
}

func (s ttfSource) HasGlyph(r rune) bool {
	return s.f.Index(r) != 0
}

func (s ttfSource) NewFace(size float64) font.Face {
	return truetype.NewFace(s.f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// FontRegistry maps font families to parsed TrueType fonts. Unknown families fall back to Go Regular.
// Runes the chosen font lacks are taken from the other registered fonts in registration order.
// Faces are created per call and must not be shared between goroutines.
type FontRegistry struct {
	mu       sync.RWMutex
	sources  map[string]GlyphSource
	order    []string
	fallback GlyphSource
}

func NewFontRegistry() (*FontRegistry, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse builtin font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse builtin bold font: %w", err)
	}

	r := &FontRegistry{
		sources:  make(map[string]GlyphSource),
		fallback: ttfSource{f: regular},
	}
	r.AddSource("go", r.fallback)
	r.AddSource("go bold", ttfSource{f: bold})
	return r, nil
}

// Register parses a TrueType font and makes it available under family.
func (r *FontRegistry) Register(family string, data []byte) error {
	f, err := truetype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font %q: %w", family, err)
	}
	r.AddSource(family, ttfSource{f: f})
	return nil
}

// AddSource registers an already prepared glyph source under family.
func (r *FontRegistry) AddSource(family string, src GlyphSource) {
	name := normalizeFamily(family)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[name]; !ok {
		r.order = append(r.order, name)
	}
	r.sources[name] = src
}

// LoadDir registers every *.ttf file of dir; the family name is the file name without extension.
func (r *FontRegistry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".ttf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return loaded, err
		}
		if err := r.Register(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), data); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

func (r *FontRegistry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]string, 0, len(r.sources))
	for k := range r.sources {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// Missing returns the runes of text that no registered font can draw, in order of first appearance.
func (r *FontRegistry) Missing(text string) []rune {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []rune
	seen := make(map[rune]bool)
	for _, c := range text {
		if seen[c] || unicode.IsSpace(c) || unicode.IsControl(c) {
			continue
		}
		seen[c] = true

		covered := false
		for _, name := range r.order {
			if r.sources[name].HasGlyph(c) {
				covered = true
				break
			}
		}
		if !covered {
			res = append(res, c)
		}
	}
	return res
}

// Face returns a fresh face of the family at size px.
func (r *FontRegistry) Face(family string, size float64) font.Face {
	r.mu.RLock()
	primary, ok := r.sources[normalizeFamily(family)]
	if !ok {
		primary = r.fallback
	}
	chain := make([]GlyphSource, 0, len(r.order)+1)
	chain = append(chain, primary)
	for _, name := range r.order {
		if src := r.sources[name]; src != primary {
			chain = append(chain, src)
		}
	}
	r.mu.RUnlock()

	return &chainFace{
		sources: chain,
		faces:   make([]font.Face, len(chain)),
		size:    size,
	}
}

// Measure returns the advance width of s in px.
func (r *FontRegistry) Measure(family string, size float64, s string) float64 {
	face := r.Face(family, size)
	defer face.Close()
	return r.measureWith(face, s)
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func (r *FontRegistry) measureWith(face font.Face, s string) float64 {
	return toFloat(font.MeasureString(face, s))
}

// chainFace draws every rune with the first source that has it; metrics come from the primary source.
type chainFace struct {
	sources []GlyphSource
	faces   []font.Face
	size    float64
}

func (c *chainFace) face(i int) font.Face {
	if c.faces[i] == nil {
		c.faces[i] = c.sources[i].NewFace(c.size)
	}
	return c.faces[i]
}

func (c *chainFace) pick(r rune) font.Face {
	for i, src := range c.sources {
		if src.HasGlyph(r) {
			return c.face(i)
		}
	}
	return c.face(0)
}

func (c *chainFace) Glyph(dot fixed.Point26_6, r rune) (image.Rectangle, image.Image, image.Point, fixed.Int26_6, bool) {
	return c.pick(r).Glyph(dot, r)
}

func (c *chainFace) GlyphBounds(r rune) (fixed.Rectangle26_6, fixed.Int26_6, bool) {
	return c.pick(r).GlyphBounds(r)
}

func (c *chainFace) GlyphAdvance(r rune) (fixed.Int26_6, bool) {
	return c.pick(r).GlyphAdvance(r)
}

// Kern - кернинг только внутри одного шрифта
func (c *chainFace) Kern(r0, r1 rune) fixed.Int26_6 {
	f0 := c.pick(r0)
	if f0 != c.pick(r1) {
		return 0
	}
	return f0.Kern(r0, r1)
}

func (c *chainFace) Metrics() font.Metrics {
	return c.face(0).Metrics()
}

func (c *chainFace) Close() error {
	var errs []error
	for _, f := range c.faces {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}
