package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"lexdraft-backend/storage"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

var ErrRender = errors.New("failed to render PDF")

// Page layout in points (A4)
const (
	marginLeft   = 60.0
	marginRight  = 60.0
	marginTop    = 50.0
	marginBottom = 50.0
	pointsInch   = 72.0
)

// fontFace is a TrueType font plus the parsed tables used for coverage checks
type fontFace struct {
	family string
	data   []byte
	font   *sfnt.Font
}

func parseFontFace(family string, data []byte) (*fontFace, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", family, err)
	}
	return &fontFace{family: family, data: data, font: f}, nil
}

// covers reports whether the font has a glyph for every printable rune of s
func (f *fontFace) covers(buf *sfnt.Buffer, s string) bool {
	_, ok := f.firstMissing(buf, s)
	return !ok
}

func (f *fontFace) firstMissing(buf *sfnt.Buffer, s string) (rune, bool) {
	for _, r := range s {
		if !needsGlyph(r) {
			continue
		}
		idx, err := f.font.GlyphIndex(buf, r)
		if err != nil || idx == 0 {
			return r, true
		}
	}
	return 0, false
}

// needsGlyph skips whitespace and format characters such as ZWJ
func needsGlyph(r rune) bool {
	return !unicode.IsSpace(r) && !unicode.Is(unicode.Cf, r) && !unicode.IsControl(r)
}

// PDFRenderer renders complaint text as an A4 PDF
type PDFRenderer struct {
	faces []*fontFace
	now   func() time.Time
}

// PDFOption is a functional option for PDFRenderer
type PDFOption func(*PDFRenderer) error

// WithFont adds a TrueType font to the fallback chain
func WithFont(name string, data []byte) PDFOption {
	return func(r *PDFRenderer) error {
		face, err := parseFontFace(fmt.Sprintf("F%d", len(r.faces)), data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.faces = append(r.faces, face)
		return nil
	}
}

// WithClock sets the time source used for [Current Date] placeholders
func WithClock(now func() time.Time) PDFOption {
	return func(r *PDFRenderer) error {
		r.now = now
		return nil
	}
}

// NewPDFRenderer creates a renderer; the embedded Go Regular font is always
// appended as the last fallback
func NewPDFRenderer(opts ...PDFOption) (*PDFRenderer, error) {
	r := &PDFRenderer{now: time.Now}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	fallback, err := parseFontFace(fmt.Sprintf("F%d", len(r.faces)), goregular.TTF)
	if err != nil {
		return nil, err
	}
	r.faces = append(r.faces, fallback)
	return r, nil
}

// LoadFonts reads font files from disk and from storage. Missing, unreadable
// or unparsable fonts are logged and skipped so that English export keeps working.
func LoadFonts(ctx context.Context, store storage.Storage, paths, keys []string) []PDFOption {
	var opts []PDFOption
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Font file '%s' not found. PDF export for non-English languages may fail.", path)
			continue
		}
		if _, err := sfnt.Parse(data); err != nil {
			log.Printf("Warning: Skipping font file '%s': %v", path, err)
			continue
		}
		opts = append(opts, WithFont(filepath.Base(path), data))
	}
	for _, key := range keys {
		if store == nil {
			log.Printf("Warning: No storage configured, skipping font %s", key)
			continue
		}
		rc, err := store.Download(ctx, key)
		if err != nil {
			log.Printf("Warning: Failed to download font %s: %v", key, err)
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Printf("Warning: Failed to read font %s: %v", key, err)
			continue
		}
		if _, err := sfnt.Parse(data); err != nil {
			log.Printf("Warning: Skipping font %s: %v", key, err)
			continue
		}
		opts = append(opts, WithFont(key, data))
	}
	return opts
}

// lineStyle controls how one line of the complaint is set
type lineStyle struct {
	size        float64
	lineHeight  float64
	align       string
	spaceBefore float64
	spaceAfter  float64
}

var (
	titleStyle   = lineStyle{size: 18, lineHeight: 22, align: "C", spaceAfter: 20}
	headingStyle = lineStyle{size: 13, lineHeight: 16, align: "L", spaceBefore: 15, spaceAfter: 10}
	addressStyle = lineStyle{size: 11, lineHeight: 14, align: "L", spaceAfter: 6}
	bodyStyle    = lineStyle{size: 11, lineHeight: 16, align: "J", spaceAfter: 8}
)

const spacerHeight = 0.15 * pointsInch

var headingKeywords = []string{
	"Parties Involved",
	"Factual Summary",
	"Applicable Legal Sections",
	"Demand or Request",
	"Verification",
	"Date:",
	"Sender Details",
	"Signature:",
}

func styleFor(line string) lineStyle {
	if strings.Contains(strings.ToUpper(line), "LEGAL COMPLAINT") && utf8.RuneCountInString(line) < 30 {
		return titleStyle
	}
	for _, k := range headingKeywords {
		if strings.Contains(line, k) {
			return headingStyle
		}
	}
	if strings.HasPrefix(line, "To,") {
		return addressStyle
	}
	return bodyStyle
}

// blankLine returns an underscore rule of the given width in inches
func blankLine(inches float64) string {
	return strings.Repeat("_", int(inches*20))
}

type placeholder struct {
	pattern *regexp.Regexp
	replace func(now time.Time) string
}

func fixed(s string) func(time.Time) string {
	return func(time.Time) string { return s }
}

// placeholders are applied in order; the later, broader patterns only see
// brackets the specific ones left alone
var placeholders = []placeholder{
	{regexp.MustCompile(`(?i)\[Police Station Name.*?\]`), fixed(blankLine(3))},
	{regexp.MustCompile(`(?i)\[City, State, India.*?\]`), fixed(blankLine(3))},
	{regexp.MustCompile(`(?i)\[Current Date.*?\]`), func(now time.Time) string { return now.Format("January 02, 2006") }},
	{regexp.MustCompile(`(?i)\[Date of incident.*?\]`), fixed(blankLine(2))},
	{regexp.MustCompile(`(?i)\[Time of incident.*?\]`), fixed(blankLine(2))},
	{regexp.MustCompile(`(?i)\[[^\]]*?Name.*?\]`), fixed(blankLine(3))},
	{regexp.MustCompile(`(?i)\[[^\]]*?Address.*?\]`), fixed(blankLine(4))},
	{regexp.MustCompile(`(?i)\[[^\]]*?Contact.*?\]`), fixed(blankLine(2.5))},
	{regexp.MustCompile(`(?i)\[User's Signature.*?\]`), fixed(blankLine(2.5))},
	{regexp.MustCompile(`(?i)\[Complainant's.*?\]`), fixed(blankLine(3))},
	{regexp.MustCompile(`(?i)\[User's.*?\]`), fixed(blankLine(3))},
	{regexp.MustCompile(`(?i)\[[^\]]*?description of the person.*?\]`), fixed(blankLine(5))},
}

// fillPlaceholders turns bracketed placeholders into blanks to fill by hand
func fillPlaceholders(line string, now time.Time) string {
	for _, p := range placeholders {
		line = p.pattern.ReplaceAllString(line, p.replace(now))
	}
	return line
}

var headingMarks = regexp.MustCompile(`^#{1,6}\s*`)

// stripMarkdown removes emphasis and heading marks the model sometimes adds
func stripMarkdown(line string) string {
	line = headingMarks.ReplaceAllString(line, "")
	line = strings.ReplaceAll(line, "**", "")
	line = strings.ReplaceAll(line, "__", "")
	return line
}

type renderLine struct {
	text  string
	style lineStyle
	face  *fontFace
	blank bool
}

// layout resolves style, text and font for every line, failing on the first
// character no configured font can draw
func (r *PDFRenderer) layout(text string) ([]renderLine, error) {
	now := r.now()
	var buf sfnt.Buffer

	rawLines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]renderLine, 0, len(rawLines))
	for i, raw := range rawLines {
		line := strings.TrimSpace(raw)
		if line == "" {
			lines = append(lines, renderLine{blank: true})
			continue
		}
		line = stripMarkdown(line)
		style := styleFor(line)
		if style != titleStyle {
			line = fillPlaceholders(line, now)
		}

		var face *fontFace
		for _, f := range r.faces {
			if f.covers(&buf, line) {
				face = f
				break
			}
		}
		if face == nil {
			return nil, r.coverageError(&buf, i+1, line)
		}

		lines = append(lines, renderLine{text: line, style: style, face: face})
	}
	return lines, nil
}

// coverageError names the first rune no font can draw, or reports a line
// whose scripts are split across fonts
func (r *PDFRenderer) coverageError(buf *sfnt.Buffer, lineNo int, line string) error {
	for _, ch := range line {
		if !needsGlyph(ch) {
			continue
		}
		found := false
		for _, f := range r.faces {
			if f.covers(buf, string(ch)) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: line %d: no font has a glyph for %q (U+%04X)", ErrRender, lineNo, ch, ch)
		}
	}
	return fmt.Errorf("%w: line %d: no single font covers every script on the line", ErrRender, lineNo)
}

// Check verifies that every character of text can be drawn
func (r *PDFRenderer) Check(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyDocument
	}
	_, err := r.layout(text)
	return err
}

// ToPDF renders text. A character no font can draw is an ErrRender; nothing
// is drawn with substitute boxes.
func (r *PDFRenderer) ToPDF(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	lines, err := r.layout(text)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetTitle("Legal Complaint", true)
	pdf.SetCreator("lexdraft", true)
	pdf.SetCreationDate(r.now())
	pdf.AddPage()

	registered := make(map[string]bool)
	for _, line := range lines {
		if line.blank {
			pdf.Ln(spacerHeight)
			continue
		}
		if !registered[line.face.family] {
			pdf.AddUTF8FontFromBytes(line.face.family, "", line.face.data)
			registered[line.face.family] = true
		}
		if line.style.spaceBefore > 0 {
			pdf.Ln(line.style.spaceBefore)
		}
		pdf.SetFont(line.face.family, "", line.style.size)
		pdf.MultiCell(0, line.style.lineHeight, line.text, "", line.style.align, false)
		if line.style.spaceAfter > 0 {
			pdf.Ln(line.style.spaceAfter)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return out.Bytes(), nil
}
