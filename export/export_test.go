package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lexdraft-backend/storage"

	"golang.org/x/image/font/gofont/goregular"
)

const englishComplaint = `LEGAL COMPLAINT

To, The Station House Officer, [Police Station Name], [City, State, India]

Date: [Current Date]

Parties Involved:
Complainant: [Complainant's Name]
Accused: My neighbour, [Name of Accused]

Factual Summary:
On [Date of incident] at [Time of incident], my motorbike was stolen from outside my house.

Applicable Legal Sections:
Section 379: Punishment for theft

Signature: [User's Signature]`

func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
}

func TestToText(t *testing.T) {
	got, err := ToText("LEGAL COMPLAINT\r\nSection 379\n\n\n")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "LEGAL COMPLAINT\nSection 379\n" {
		t.Errorf("got %q", got)
	}
	if _, err := ToText(" \n\t"); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestFillPlaceholders(t *testing.T) {
	now := fixedClock()
	cases := map[string]string{
		"To, The Station House Officer, [Police Station Name]": "To, The Station House Officer, " + blankLine(3),
		"Date: [Current Date]":                                 "Date: March 05, 2024",
		"On [date of incident] at [Time of Incident]":          "On " + blankLine(2) + " at " + blankLine(2),
		"Name: [Complainant's Full Name]":                      "Name: " + blankLine(3),
		"Address: [Your Address]":                              "Address: " + blankLine(4),
		"Signature: [User's Signature]":                        "Signature: " + blankLine(2.5),
		"Section 379 applies [see annexure]":                   "Section 379 applies [see annexure]",
	}
	for in, want := range cases {
		if got := fillPlaceholders(in, now); got != want {
			t.Errorf("fillPlaceholders(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStyleFor(t *testing.T) {
	cases := []struct {
		line string
		want lineStyle
	}{
		{"LEGAL COMPLAINT", titleStyle},
		{"Factual Summary:", headingStyle},
		{"Date: March 05, 2024", headingStyle},
		{"To, The Station House Officer,", addressStyle},
		{"My motorbike was stolen.", bodyStyle},
		{"This legal complaint is filed against the accused for theft of property.", bodyStyle},
	}
	for _, tc := range cases {
		if got := styleFor(tc.line); got != tc.want {
			t.Errorf("styleFor(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestToPDFEnglish(t *testing.T) {
	r, err := NewPDFRenderer(WithClock(fixedClock))
	if err != nil {
		t.Fatal(err)
	}
	data, err := r.ToPDF(englishComplaint)
	if err != nil {
		t.Fatalf("ToPDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("output is not a PDF: %q", data[:min(len(data), 16)])
	}
	if _, err := r.ToPDF("  "); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestToPDFMissingGlyphIsRenderError(t *testing.T) {
	r, err := NewPDFRenderer()
	if err != nil {
		t.Fatal(err)
	}
	hindi := "कानूनी शिकायत\nमेरे पड़ोसी ने मेरी मोटरसाइकिल चुरा ली।"
	_, err = r.ToPDF(hindi)
	if !errors.Is(err, ErrRender) {
		t.Fatalf("expected ErrRender without a Devanagari font, got %v", err)
	}
	if !strings.Contains(err.Error(), "U+") {
		t.Errorf("error should name the missing character: %v", err)
	}
	if err := r.Check(hindi); !errors.Is(err, ErrRender) {
		t.Errorf("Check should agree with ToPDF, got %v", err)
	}
	// The text export stays available
	if _, err := ToText(hindi); err != nil {
		t.Errorf("text fallback failed: %v", err)
	}
}

func TestDefaultFontsAbsentKeepsEnglishExport(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"NotoSansDevanagari-Regular.ttf", "NotoSansTelugu-Regular.ttf", "NotoSansTamil-Regular.ttf"} {
		paths = append(paths, filepath.Join(dir, "fonts", name))
	}
	opts := LoadFonts(context.Background(), nil, paths, []string{"fonts/NotoSansTamil-Regular.ttf"})
	if len(opts) != 0 {
		t.Fatalf("expected no fonts in a fresh checkout, got %d", len(opts))
	}

	r, err := NewPDFRenderer(append(opts, WithClock(fixedClock))...)
	if err != nil {
		t.Fatalf("renderer must start without the Noto fonts: %v", err)
	}
	if _, err := r.ToPDF(englishComplaint); err != nil {
		t.Errorf("English export: %v", err)
	}
	if _, err := r.ToPDF("धारा 379"); !errors.Is(err, ErrRender) {
		t.Errorf("expected ErrRender for Hindi, got %v", err)
	}
}

// devanagariFont is Go Regular with U+0900..U+097F mapped onto existing
// outlines. Glyph shapes are meaningless; coverage is what is under test.
func devanagariFont(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "GoDevanagariTest.ttf"))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestToPDFHindiWithUnicodeFont(t *testing.T) {
	r, err := NewPDFRenderer(WithFont("devanagari", devanagariFont(t)), WithClock(fixedClock))
	if err != nil {
		t.Fatal(err)
	}
	hindi := "कानूनी शिकायत\n\nसेवा में थाना प्रभारी, [Police Station Name]\nमेरे पड़ोसी ने मेरी मोटरसाइकिल चुरा ली।\nधारा 379 IPC"
	if err := r.Check(hindi); err != nil {
		t.Fatalf("Check: %v", err)
	}
	data, err := r.ToPDF(hindi)
	if err != nil {
		t.Fatalf("Hindi PDF should render with a Devanagari font: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}

	lines, err := r.layout(hindi)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range lines {
		if !line.blank && line.face != r.faces[0] {
			t.Errorf("line %q should use the Devanagari font, got %s", line.text, line.face.family)
		}
	}
}

func TestWithFontRejectsGarbage(t *testing.T) {
	if _, err := NewPDFRenderer(WithFont("broken.ttf", []byte("not a font"))); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFontsSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goregular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewLocalStorage(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upload(context.Background(), "fonts/goregular.ttf", bytes.NewReader(goregular.TTF)); err != nil {
		t.Fatal(err)
	}

	garbage := filepath.Join(dir, "garbage.ttf")
	if err := os.WriteFile(garbage, []byte("not a font"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := LoadFonts(context.Background(), store,
		[]string{path, filepath.Join(dir, "missing.ttf"), garbage},
		[]string{"fonts/goregular.ttf", "fonts/missing.ttf"},
	)
	if len(opts) != 2 {
		t.Fatalf("expected 2 loadable fonts, got %d", len(opts))
	}
	r, err := NewPDFRenderer(opts...)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.faces) != 3 {
		t.Errorf("expected 2 fonts plus fallback, got %d", len(r.faces))
	}
}
