package verse

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_content.yaml
var defaultContentYAML []byte

// Passage is a reference with its display text.
type Passage struct {
	Reference string `yaml:"reference"`
	Text      string `yaml:"text"`
}

// Event is a calendar entry or theme with the passages it cycles through.
type Event struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Verses      []Passage `yaml:"verses"`
}

// Calendar drives date mode. Events are keyed by MM-DD, weekly themes by
// lower-case weekday, monthly themes by lower-case month name and seasonal
// themes by spring, summer, autumn or winter.
type Calendar struct {
	Events         map[string][]Event `yaml:"events"`
	WeeklyThemes   map[string][]Event `yaml:"weekly_themes"`
	MonthlyThemes  map[string][]Event `yaml:"monthly_themes"`
	SeasonalThemes map[string][]Event `yaml:"seasonal_themes"`
}

// Devotional is one entry in the devotional rotation.
type Devotional struct {
	Title     string `yaml:"title"`
	Author    string `yaml:"author"`
	Source    string `yaml:"source"`
	Reference string `yaml:"reference"`
	Text      string `yaml:"text"`
}

// Content is the editable text used by verse selection.
type Content struct {
	FallbackVerses []Passage         `yaml:"fallback_verses"`
	Calendar       Calendar          `yaml:"calendar"`
	Devotionals    []Devotional      `yaml:"devotionals"`
	Summaries      map[string]string `yaml:"summaries"`
}

// DefaultContent returns the built-in content.
func DefaultContent() (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(defaultContentYAML, &c); err != nil {
		return nil, fmt.Errorf("parsing built-in content: %w", err)
	}
	return &c, nil
}

// LoadContent reads a YAML content file. A missing file yields the built-in
// content; sections absent from the file fall back to the built-in ones.
func LoadContent(path string) (*Content, error) {
	defaults, err := DefaultContent()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading content: %w", err)
	}
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing content: %w", err)
	}
	if len(c.FallbackVerses) == 0 {
		c.FallbackVerses = defaults.FallbackVerses
	}
	if len(c.Devotionals) == 0 {
		c.Devotionals = defaults.Devotionals
	}
	if len(c.Summaries) == 0 {
		c.Summaries = defaults.Summaries
	}
	if c.Calendar.empty() {
		c.Calendar = defaults.Calendar
	}
	return &c, nil
}

func (c Calendar) empty() bool {
	return len(c.Events) == 0 && len(c.WeeklyThemes) == 0 && len(c.MonthlyThemes) == 0 && len(c.SeasonalThemes) == 0
}

// Summary returns the summary text for book.
func (c *Content) Summary(book string) string {
	if text, ok := c.Summaries[book]; ok && text != "" {
		return text
	}
	return book + " is a book of the Bible containing wisdom and spiritual guidance."
}
