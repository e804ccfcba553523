package importer

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var languagesYAML []byte

//go:embed subjects.yaml
var subjectsYAML []byte

// Language describes how candidates in one preferred language are recognized
// and which translation target their descriptions go to.
type Language struct {
	Code      string `yaml:"code" json:"code"`
	Name      string `yaml:"name" json:"name"`
	Target    string `yaml:"target" json:"target"`
	StopWords string `yaml:"stop_words" json:"-"`

	stop *regexp.Regexp
}

// MatchesTitle reports whether title contains one of the language's stop-words.
func (l *Language) MatchesTitle(title string) bool {
	return l.stop != nil && l.stop.MatchString(title)
}

type Subject struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Languages parses the embedded language table.
func Languages() (map[string]*Language, error) {
	var list []*Language
	if err := yaml.Unmarshal(languagesYAML, &list); err != nil {
		return nil, fmt.Errorf("parse languages: %w", err)
	}
	out := make(map[string]*Language, len(list))
	for _, l := range list {
		re, err := regexp.Compile("(?i)" + l.StopWords)
		if err != nil {
			return nil, fmt.Errorf("language %s: %w", l.Code, err)
		}
		l.stop = re
		out[l.Code] = l
	}
	return out, nil
}

// LookupLanguage returns the table entry for code.
func LookupLanguage(code string) (*Language, error) {
	all, err := Languages()
	if err != nil {
		return nil, err
	}
	l, ok := all[code]
	if !ok {
		return nil, fmt.Errorf("unsupported import language %q", code)
	}
	return l, nil
}

// Subjects parses the embedded subject option list, in display order.
func Subjects() ([]Subject, error) {
	var out []Subject
	if err := yaml.Unmarshal(subjectsYAML, &out); err != nil {
		return nil, fmt.Errorf("parse subjects: %w", err)
	}
	return out, nil
}
