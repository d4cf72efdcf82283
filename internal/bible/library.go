// Package bible looks up verse text from local translation files, the
// bible-api.com service and the SQLite verse cache.
package bible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// ErrNotFound reports a verse that a source does not have.
var ErrNotFound = errors.New("verse not found")

// StructureFile is the optional chapter/verse count file in a library dir.
const StructureFile = "bible_structure.json"

// translationText is book -> chapter -> verse -> text, as stored on disk.
type translationText map[string]map[string]map[string]string

// Library serves translations stored as bible_<code>.json files in one
// directory. Files are loaded on first use.
type Library struct {
	dir string

	mu        sync.Mutex
	texts     map[model.Translation]translationText
	structure map[string]map[string]int
}

// Coverage describes a locally installed translation.
type Coverage struct {
	Translation model.Translation
	Installed   bool
	Verses      int
	Percent     float64
}

// NewLibrary returns a Library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir, texts: make(map[model.Translation]translationText)}
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// FileName returns the file name a translation is stored under.
func FileName(t model.Translation) string {
	name := string(t)
	if t == model.NASB {
		name = "nasb1995"
	}
	return "bible_" + name + ".json"
}

// Verse implements verse.Source over the local files.
func (l *Library) Verse(_ context.Context, t model.Translation, book string, chapter, verse int) (string, error) {
	text, err := l.translation(t)
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(text[book][strconv.Itoa(chapter)][strconv.Itoa(verse)])
	if v == "" {
		return "", fmt.Errorf("%s %s %d:%d: %w", t, book, chapter, verse, ErrNotFound)
	}
	return v, nil
}

// MaxVerse reports the highest verse number of a chapter. It uses the
// structure file when present, otherwise the local KJV text.
func (l *Library) MaxVerse(book string, chapter int) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.structure == nil {
		l.structure = l.loadStructureLocked()
	}
	n, ok := l.structure[book][strconv.Itoa(chapter)]
	return n, ok && n > 0
}

func (l *Library) loadStructureLocked() map[string]map[string]int {
	structure := make(map[string]map[string]int)
	data, err := os.ReadFile(filepath.Join(l.dir, StructureFile))
	if err == nil {
		if err := json.Unmarshal(data, &structure); err == nil {
			return structure
		}
	}
	text, err := l.translationLocked(model.KJV)
	if err != nil {
		return structure
	}
	for book, chapters := range text {
		structure[book] = make(map[string]int, len(chapters))
		for ch, verses := range chapters {
			highest := 0
			for v := range verses {
				if n, err := strconv.Atoi(v); err == nil && n > highest {
					highest = n
				}
			}
			structure[book][ch] = highest
		}
	}
	return structure
}

func (l *Library) totalVersesLocked() int {
	if l.structure == nil {
		l.structure = l.loadStructureLocked()
	}
	total := 0
	for _, chapters := range l.structure {
		for _, n := range chapters {
			total += n
		}
	}
	return total
}

func (l *Library) translation(t model.Translation) (translationText, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.translationLocked(t)
}

func (l *Library) translationLocked(t model.Translation) (translationText, error) {
	if text, ok := l.texts[t]; ok {
		return text, nil
	}
	text := make(translationText)
	data, err := os.ReadFile(filepath.Join(l.dir, FileName(t)))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", FileName(t), err)
	default:
		if err := json.Unmarshal(data, &text); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", FileName(t), err)
		}
	}
	l.texts[t] = text
	return text, nil
}

// Coverage reports how much of each supported translation is installed.
func (l *Library) Coverage() ([]Coverage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.totalVersesLocked()
	out := make([]Coverage, 0, len(model.Translations))
	for _, t := range model.Translations {
		text, err := l.translationLocked(t)
		if err != nil {
			return nil, err
		}
		c := Coverage{Translation: t, Installed: len(text) > 0}
		for _, chapters := range text {
			for _, verses := range chapters {
				for _, v := range verses {
					if strings.TrimSpace(v) != "" {
						c.Verses++
					}
				}
			}
		}
		if total > 0 {
			c.Percent = float64(c.Verses) / float64(total) * 100
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Verses > out[j].Verses
	})
	return out, nil
}

// Install validates r as a translation file and atomically replaces the
// installed copy.
func (l *Library) Install(t model.Translation, r io.Reader) error {
	if !t.Valid() {
		return fmt.Errorf("unsupported translation %q", t)
	}
	var text translationText
	if err := json.NewDecoder(r).Decode(&text); err != nil {
		return fmt.Errorf("failed to decode translation: %w", err)
	}
	if len(text) == 0 {
		return fmt.Errorf("translation file is empty")
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create translations dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(l.dir, "bible-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()
	if err := json.NewEncoder(tmpFile).Encode(text); err != nil {
		return fmt.Errorf("failed to write translation: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(l.dir, FileName(t))); err != nil {
		return fmt.Errorf("failed to move translation into place: %w", err)
	}

	l.mu.Lock()
	l.texts[t] = text
	if t == model.KJV {
		l.structure = nil
	}
	l.mu.Unlock()
	return nil
}

// Download fetches a translation file from url and installs it.
func (l *Library) Download(ctx context.Context, t model.Translation, url string) error {
	resp, err := httpRequest(ctx, url, defaultTimeout)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected download status: %s", resp.Status)
	}
	return l.Install(t, resp.Body)
}
