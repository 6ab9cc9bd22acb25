package models

import "strings"

// Language identifies a natural language by ISO 639-1 code and English name
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var (
	English = Language{Code: "en", Name: "English"}
	Hindi   = Language{Code: "hi", Name: "Hindi"}
	Telugu  = Language{Code: "te", Name: "Telugu"}
	Tamil   = Language{Code: "ta", Name: "Tamil"}
)

// AutoDetect is the output language selector value meaning "same as the input"
const AutoDetect = "auto"

// SupportedOutputLanguages lists the languages a complaint can be delivered in
var SupportedOutputLanguages = []Language{English, Hindi, Telugu, Tamil}

var knownLanguages = []Language{
	English, Hindi, Telugu, Tamil,
	{Code: "bn", Name: "Bengali"},
	{Code: "gu", Name: "Gujarati"},
	{Code: "kn", Name: "Kannada"},
	{Code: "ml", Name: "Malayalam"},
	{Code: "mr", Name: "Marathi"},
	{Code: "pa", Name: "Punjabi"},
	{Code: "ur", Name: "Urdu"},
	{Code: "or", Name: "Odia"},
}

// LookupLanguage resolves a code or English name ("hi", "Hindi", "hindi")
func LookupLanguage(s string) (Language, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Language{}, false
	}
	for _, lang := range knownLanguages {
		if strings.EqualFold(lang.Code, s) || strings.EqualFold(lang.Name, s) {
			return lang, true
		}
	}
	return Language{}, false
}

// LookupOutputLanguage resolves s against SupportedOutputLanguages only
func LookupOutputLanguage(s string) (Language, bool) {
	lang, ok := LookupLanguage(s)
	if !ok {
		return Language{}, false
	}
	for _, supported := range SupportedOutputLanguages {
		if supported.Code == lang.Code {
			return lang, true
		}
	}
	return Language{}, false
}

// IsZero reports whether the language is unset
func (l Language) IsZero() bool {
	return l.Code == "" && l.Name == ""
}

// IsEnglish reports whether l is English
func (l Language) IsEnglish() bool {
	return l.Same(English)
}

// Same compares by code when both have one, otherwise by name
func (l Language) Same(other Language) bool {
	if l.Code != "" && other.Code != "" {
		return strings.EqualFold(l.Code, other.Code)
	}
	return l.Name != "" && strings.EqualFold(l.Name, other.Name)
}

func (l Language) String() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Code
}
