package analyzer

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// Category is a label together with the keywords that vote for it.
type Category struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// CategorySet is an ordered list of categories plus the label returned when
// none of them matches.
type CategorySet struct {
	Default    string     `yaml:"default"`
	Categories []Category `yaml:"categories"`
}

type fallbackRule struct {
	Sentences int      `yaml:"sentences"`
	Keywords  []string `yaml:"keywords"`
	Pattern   string   `yaml:"pattern"`
	Default   string   `yaml:"default"`
}

type flowTriggers struct {
	Opening []string `yaml:"opening_triggers"`
	Closing []string `yaml:"closing_triggers"`
}

type vocabularyFile struct {
	Domains            CategorySet  `yaml:"domains"`
	Complexity         CategorySet  `yaml:"complexity"`
	ThinkingPatterns   CategorySet  `yaml:"thinking_patterns"`
	IntellectualStyles CategorySet  `yaml:"intellectual_styles"`
	Frameworks         []string     `yaml:"frameworks"`
	Topics             []string     `yaml:"topics"`
	ProblemPatterns    []string     `yaml:"problem_patterns"`
	DecisionPatterns   []string     `yaml:"decision_patterns"`
	FocusPatterns      []string     `yaml:"focus_patterns"`
	ProblemFallback    fallbackRule `yaml:"problem_fallback"`
	FocusFallback      fallbackRule `yaml:"focus_fallback"`
	Flow               flowTriggers `yaml:"flow"`
}

// Vocabulary is the compiled, read-only form of the analyzer tables. A
// Vocabulary is never modified after LoadVocabulary returns it, so one value
// can be shared by any number of goroutines.
type Vocabulary struct {
	Domains            CategorySet
	Complexity         CategorySet
	ThinkingPatterns   CategorySet
	IntellectualStyles CategorySet
	Frameworks         []string
	Topics             []string

	ProblemPatterns  []*regexp.Regexp
	DecisionPatterns []*regexp.Regexp
	FocusPatterns    []*regexp.Regexp

	ProblemFallbackSentences int
	ProblemFallbackKeywords  []string
	ProblemDefault           string
	FocusFallback            *regexp.Regexp
	FocusDefault             string

	OpeningTriggers []string
	ClosingTriggers []string
}

// LoadVocabulary parses and compiles a YAML vocabulary document.
func LoadVocabulary(data []byte) (*Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}

	v := &Vocabulary{
		Domains:                  lowerSet(f.Domains),
		Complexity:               lowerSet(f.Complexity),
		ThinkingPatterns:         lowerSet(f.ThinkingPatterns),
		IntellectualStyles:       lowerSet(f.IntellectualStyles),
		Frameworks:               lowerAll(f.Frameworks),
		Topics:                   lowerAll(f.Topics),
		ProblemFallbackSentences: f.ProblemFallback.Sentences,
		ProblemFallbackKeywords:  lowerAll(f.ProblemFallback.Keywords),
		ProblemDefault:           f.ProblemFallback.Default,
		FocusDefault:             f.FocusFallback.Default,
		OpeningTriggers:          lowerAll(f.Flow.Opening),
		ClosingTriggers:          lowerAll(f.Flow.Closing),
	}

	var err error
	if v.ProblemPatterns, err = compileCapturing("problem_patterns", f.ProblemPatterns, 1); err != nil {
		return nil, err
	}
	if v.DecisionPatterns, err = compileCapturing("decision_patterns", f.DecisionPatterns, 1); err != nil {
		return nil, err
	}
	if v.FocusPatterns, err = compileCapturing("focus_patterns", f.FocusPatterns, 1); err != nil {
		return nil, err
	}
	if f.FocusFallback.Pattern != "" {
		res, err := compileCapturing("focus_fallback", []string{f.FocusFallback.Pattern}, 2)
		if err != nil {
			return nil, err
		}
		v.FocusFallback = res[0]
	}

	if err := v.validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// LoadVocabularyFile reads a vocabulary from disk.
func LoadVocabularyFile(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return LoadVocabulary(data)
}

var loadDefault = sync.OnceValue(func() *Vocabulary {
	v, err := LoadVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
})

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() *Vocabulary {
	return loadDefault()
}

func (v *Vocabulary) validate() error {
	sets := []struct {
		name string
		set  CategorySet
	}{
		{"domains", v.Domains},
		{"complexity", v.Complexity},
		{"thinking_patterns", v.ThinkingPatterns},
		{"intellectual_styles", v.IntellectualStyles},
	}
	for _, s := range sets {
		if s.set.Default == "" {
			return fmt.Errorf("vocabulary %s: missing default label", s.name)
		}
		if len(s.set.Categories) == 0 {
			return fmt.Errorf("vocabulary %s: no categories", s.name)
		}
	}
	if v.ProblemDefault == "" || v.FocusDefault == "" {
		return fmt.Errorf("vocabulary: missing fallback defaults")
	}
	return nil
}

func compileCapturing(section string, patterns []string, groups int) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("vocabulary %s: compile %q: %w", section, p, err)
		}
		if re.NumSubexp() != groups {
			return nil, fmt.Errorf("vocabulary %s: %q must have %d capture group(s)", section, p, groups)
		}
		out = append(out, re)
	}
	return out, nil
}

func lowerSet(s CategorySet) CategorySet {
	out := CategorySet{Default: s.Default, Categories: make([]Category, len(s.Categories))}
	for i, c := range s.Categories {
		out.Categories[i] = Category{Label: c.Label, Keywords: lowerAll(c.Keywords)}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
