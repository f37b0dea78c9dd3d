package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Problem is the read model used for language validation and display joins.
type Problem struct {
	ID               ProblemID         `json:"id"`
	TitleI18n        map[string]string `json:"title_i18n"`
	Difficulty       string            `json:"difficulty,omitempty"`
	Status           string            `json:"status,omitempty"`
	AllowedLanguages []string          `json:"allowed_languages"`
	TestCases        []ProblemTestCase `json:"test_cases"`
}

// ProblemTestCase is the public metadata of one test case.
type ProblemTestCase struct {
	ID       int64   `json:"id"`
	Order    *int    `json:"order"`
	IsSample bool    `json:"is_sample"`
	Points   float64 `json:"points"`
}

// Title picks the title for lang, falling back to English and then any title.
func (p Problem) Title(lang string) string {
	return pickTitle(p.TitleI18n, lang)
}

// AllowsLanguage reports whether language may be submitted. An empty allow
// list means the problem does not restrict languages.
func (p Problem) AllowsLanguage(language string) bool {
	if len(p.AllowedLanguages) == 0 {
		return true
	}
	for _, allowed := range p.AllowedLanguages {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(language)) {
			return true
		}
	}
	return false
}

// ProblemRef is the problem field on a submission. The judge sends either a
// bare id or an object with id and titles.
type ProblemRef struct {
	ID        ProblemID         `json:"id"`
	TitleI18n map[string]string `json:"title_i18n,omitempty"`
}

// Title picks the title for lang.
func (r ProblemRef) Title(lang string) string {
	return pickTitle(r.TitleI18n, lang)
}

// UnmarshalJSON accepts an id or an object.
func (r *ProblemRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type plain ProblemRef
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*r = ProblemRef(p)
		return nil
	}
	var id ProblemID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = ProblemRef{ID: id}
	return nil
}

func pickTitle(titles map[string]string, lang string) string {
	if t := titles[lang]; t != "" {
		return t
	}
	if t := titles["en"]; t != "" {
		return t
	}
	langs := make([]string, 0, len(titles))
	for l := range titles {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		if t := titles[l]; t != "" {
			return t
		}
	}
	return ""
}
