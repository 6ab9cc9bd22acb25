package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"lexdraft-backend/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

var fastRetry = retryPolicy{attempts: 3, initialBackoff: time.Millisecond}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("LEGAL "), genai.Text("COMPLAINT")}},
		}},
	}
	got, err := responseText(resp)
	if err != nil || got != "LEGAL COMPLAINT" {
		t.Errorf("got %q, %v", got, err)
	}

	if _, err := responseText(&genai.GenerateContentResponse{}); err == nil {
		t.Error("expected error for no candidates")
	}
	if _, err := responseText(textResponse("   ")); !errors.Is(err, errEmptyResponse) {
		t.Errorf("expected errEmptyResponse, got %v", err)
	}

	blocked := &genai.GenerateContentResponse{
		PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
	}
	_, err = responseText(blocked)
	var be *blockedError
	if !errors.As(err, &be) {
		t.Errorf("expected blockedError, got %v", err)
	}
}

func TestRetryPolicy(t *testing.T) {
	calls := 0
	err := fastRetry.do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("expected success on third attempt, got %v after %d calls", err, calls)
	}

	calls = 0
	err = fastRetry.do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return &googleapi.Error{Code: http.StatusBadRequest, Message: "bad request"}
	})
	if err == nil || calls != 1 {
		t.Errorf("400 should not be retried, got %d calls", calls)
	}

	calls = 0
	err = fastRetry.do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errors.New("still down")
	})
	if err == nil || calls != 3 || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("expected exhausted retries, got %v after %d calls", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = fastRetry.do(ctx, "op", func(ctx context.Context) error {
		calls++
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("cancellation should stop retries, got %v after %d calls", err, calls)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		`{"a":1}`:                 `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTranscript(t *testing.T) {
	tr, err := parseTranscript("```json\n{\"transcription\":\"मेरा फोन चोरी हो गया\",\"language\":\"Hindi\"}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if lang, ok := transcriptLanguage(tr); !ok || !lang.Same(models.Hindi) {
		t.Errorf("expected Hindi, got %v", lang)
	}

	if _, err := parseTranscript(`{"transcription":"","language":"English"}`); !errors.Is(err, ErrTranscription) {
		t.Errorf("empty transcription should fail, got %v", err)
	}
	if _, err := parseTranscript("I could not hear anything"); !errors.Is(err, ErrTranscription) {
		t.Errorf("non-JSON should fail, got %v", err)
	}
}

func TestGeminiTranscriberValidatesInput(t *testing.T) {
	model := &fakeModel{responses: []string{`{"transcription":"my bike was stolen","language":"English"}`}}
	tr := &GeminiTranscriber{model: model, retry: fastRetry}

	if _, err := tr.Transcribe(context.Background(), []byte("x"), "video/mp4"); !errors.Is(err, ErrTranscription) {
		t.Errorf("unsupported type should fail, got %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), make([]byte, MaxAudioBytes+1), "audio/wav"); !errors.Is(err, ErrTranscription) {
		t.Errorf("oversized audio should fail, got %v", err)
	}
	if model.calls != 0 {
		t.Error("invalid audio must not reach the model")
	}

	got, err := tr.Transcribe(context.Background(), []byte("x"), "audio/webm;codecs=opus")
	if err != nil || got.Text != "my bike was stolen" {
		t.Fatalf("got %+v, %v", got, err)
	}
	blob, ok := model.lastParts[0].(genai.Blob)
	if !ok || blob.MIMEType != "audio/webm" {
		t.Errorf("expected normalized audio blob, got %#v", model.lastParts[0])
	}
}

func TestParseLanguageAnswer(t *testing.T) {
	cases := map[string]string{
		"Hindi":            "hi",
		"hindi.\n":         "hi",
		"**Telugu**":       "te",
		"Tamil (தமிழ்)":    "ta",
		"English":          "en",
	}
	for answer, code := range cases {
		lang, err := parseLanguageAnswer(answer)
		if err != nil || lang.Code != code {
			t.Errorf("parseLanguageAnswer(%q) = %v, %v; want %s", answer, lang, err, code)
		}
	}
	if lang, err := parseLanguageAnswer("French"); err != nil || lang.Name != "French" {
		t.Errorf("unlisted language should keep its name, got %v, %v", lang, err)
	}
	for _, bad := range []string{"", "Unknown", "  "} {
		if _, err := parseLanguageAnswer(bad); !errors.Is(err, ErrUnknownLanguage) {
			t.Errorf("parseLanguageAnswer(%q) should be unknown, got %v", bad, err)
		}
	}
}

func TestGeminiDetector(t *testing.T) {
	model := &fakeModel{responses: []string{"Hindi"}}
	d := &GeminiDetector{model: model, retry: fastRetry}

	if _, err := d.Detect(context.Background(), " "); !errors.Is(err, ErrUnknownLanguage) {
		t.Errorf("blank text should be unknown, got %v", err)
	}
	lang, err := d.Detect(context.Background(), "मेरी बाइक चोरी हो गई")
	if err != nil || !lang.Same(models.Hindi) {
		t.Errorf("got %v, %v", lang, err)
	}
}

func TestLocalDetector(t *testing.T) {
	d := NewLocalDetector()
	lang, err := d.Detect(context.Background(), "My neighbour broke into my house last night and stole my gold jewellery and cash from the cupboard.")
	if err != nil || !lang.IsEnglish() {
		t.Errorf("expected English, got %v, %v", lang, err)
	}
	lang, err = d.Detect(context.Background(), "मेरे पड़ोसी ने कल रात मेरे घर में घुसकर मेरे गहने और नकदी चुरा ली।")
	if err != nil || !lang.Same(models.Hindi) {
		t.Errorf("expected Hindi, got %v, %v", lang, err)
	}
	if _, err := d.Detect(context.Background(), "12345 !!!"); !errors.Is(err, ErrUnknownLanguage) {
		t.Errorf("expected unknown for digits, got %v", err)
	}
}

func TestGeminiTranslator(t *testing.T) {
	model := &fakeModel{responses: []string{"मेरे पड़ोसी ने मेरी मोटरसाइकिल चुरा ली"}}
	tr := &GeminiTranslator{model: model, retry: fastRetry}

	same, err := tr.Translate(context.Background(), "hello", models.English, models.English)
	if err != nil || same != "hello" || model.calls != 0 {
		t.Errorf("identity translation should not call the model: %q, %v, %d calls", same, err, model.calls)
	}

	got, err := tr.Translate(context.Background(), "My neighbor stole my motorbike", models.English, models.Hindi)
	if err != nil || got == "" {
		t.Fatalf("got %q, %v", got, err)
	}
	prompt := string(model.lastParts[0].(genai.Text))
	if !strings.Contains(prompt, "from English to Hindi") {
		t.Errorf("unexpected prompt %q", prompt)
	}

	failing := &GeminiTranslator{
		model: &fakeModel{errs: []error{&googleapi.Error{Code: http.StatusForbidden}}},
		retry: fastRetry,
	}
	if _, err := failing.Translate(context.Background(), "text", models.English, models.Tamil); !errors.Is(err, ErrTranslation) {
		t.Errorf("expected ErrTranslation, got %v", err)
	}
}

func TestGeminiClassifier(t *testing.T) {
	cases := []struct {
		answer  string
		want    bool
		wantErr bool
	}{
		{"Yes", true, false},
		{"yes.", true, false},
		{"No", false, false},
		{"**No**", false, false},
		{"Maybe", false, true},
		{"Not sure", false, true},
	}
	for _, tc := range cases {
		c := &GeminiClassifier{model: &fakeModel{responses: []string{tc.answer}}, retry: fastRetry}
		got, err := c.Classify(context.Background(), "My neighbor stole my motorbike")
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("answer %q: got %v, %v", tc.answer, got, err)
		}
	}
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()
	cases := []struct {
		text  string
		legal bool
	}{
		{"My neighbor stole my motorbike", true},
		{"I want to file an FIR", true},
		{"Two men robbed me near the station", true},
		{"He hit me and threatened to kill my family", true},
		{"The landlord is harassing us for money", true},
		{"What is the capital of France?", false},
		{"I have a problem with my math homework", false},
		{"What is a good grape juice recipe?", false},
		{"How do I improve my cooking skills?", false},
		{"Can a robot forget what it learned?", false},
	}
	for _, tc := range cases {
		legal, err := c.Classify(context.Background(), tc.text)
		if err != nil {
			t.Fatal(err)
		}
		if legal != tc.legal {
			t.Errorf("Classify(%q) = %v, want %v", tc.text, legal, tc.legal)
		}
	}

	custom := NewKeywordClassifier("Encroach*", "ration")
	if legal, _ := custom.Classify(context.Background(), "They encroached on my land"); !legal {
		t.Error("custom prefix keyword should match")
	}
	if legal, _ := custom.Classify(context.Background(), "Operation complete"); legal {
		t.Error("whole-word keyword must not match inside another word")
	}
}

func TestGeminiGenerator(t *testing.T) {
	model := &fakeModel{
		errs:      []error{errors.New("deadline from upstream")},
		responses: []string{"", "LEGAL COMPLAINT\nSection 379"},
	}
	g := &GeminiGenerator{model: model, retry: fastRetry}
	got, err := g.Generate(context.Background(), "prompt")
	if err != nil || !strings.Contains(got, "Section 379") {
		t.Fatalf("got %q, %v", got, err)
	}
	if model.calls != 2 {
		t.Errorf("expected one retry, got %d calls", model.calls)
	}

	failing := &GeminiGenerator{model: &fakeModel{responses: []string{""}}, retry: retryPolicy{attempts: 1}}
	if _, err := failing.Generate(context.Background(), "prompt"); !errors.Is(err, ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestBuildComplaintPrompt(t *testing.T) {
	sections := []models.ScoredSection{{Section: testSections()[1], Score: 0.9}}
	prompt := BuildComplaintPrompt("My neighbor stole my motorbike", sections)
	for _, want := range []string{
		"My neighbor stole my motorbike",
		"• Section 379: Punishment for theft",
		"Description: Whoever commits theft",
		"Punishment: Up to 3 years",
		"LEGAL COMPLAINT",
		"[Police Station Name]",
		"Verification",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(BuildComplaintPrompt("x", nil), noSectionsText) {
		t.Error("empty sections should use the fallback text")
	}
}
