// internal/words/words.go
//
// Provides word list management for the session engine.
//
// Responsibilities:
//   - Describe dictionaries (id, name, language, active flag, unique words).
//   - Classify words by difficulty (letter count, non-letters excluded).
//   - Parse plain-text word lists into dictionaries.
//
// Word list format (one word or phrase per line):
//   # name: Română de bază
//   # language: ro
//   # active: true
//   student
//   încercare
//
// Constraints:
//   • Blank lines and other "#" lines are ignored.
//   • Entries keep their display form; duplicates are detected by normalized key
//     and the first occurrence wins.
//   • Entries without a single letter are dropped.

package words

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/normalize"
)

// Difficulty filters candidate words by letter count.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"   // up to 5 letters
	DifficultyNormal Difficulty = "normal" // 6 to 8 letters
	DifficultyHard   Difficulty = "hard"   // 9 letters or more
	DifficultyAuto   Difficulty = "auto"   // any length
)

// ParseDifficulty accepts the four names case-insensitively. Empty means auto.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DifficultyAuto, nil
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyAuto:
		return d, nil
	default:
		return "", core.NewValidationError(core.ErrInvalidSessionParams, "difficulty", fmt.Sprintf("unknown value %q", s))
	}
}

// Admits reports whether a word with n letters fits the difficulty.
func (d Difficulty) Admits(n int) bool {
	switch d {
	case DifficultyEasy:
		return n <= 5
	case DifficultyNormal:
		return n >= 6 && n <= 8
	case DifficultyHard:
		return n >= 9
	default:
		return true
	}
}

// Word is a dictionary entry.
type Word struct {
	Text    string // display form
	Key     string // normalized
	Letters int
}

// NewWord trims and composes text and derives its key. ok is false when
// text has no letters.
func NewWord(text string) (w Word, ok bool) {
	text = normalize.Compose(text)
	n := normalize.CountLetters(text)
	if n == 0 {
		return Word{}, false
	}
	return Word{Text: text, Key: normalize.Key(text), Letters: n}, true
}

// Dictionary is an immutable word list. Do not modify it after registering.
type Dictionary struct {
	ID        string
	Name      string
	Language  string
	Active    bool
	Words     []Word
	CreatedAt time.Time
}

// NewDictionary builds a dictionary from raw entries, deduplicating by key.
func NewDictionary(id, name, language string, entries []string, now time.Time) (*Dictionary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("words: dictionary id is empty")
	}
	if name == "" {
		name = id
	}
	d := &Dictionary{ID: id, Name: name, Language: language, Active: true, CreatedAt: now}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		w, ok := NewWord(e)
		if !ok {
			continue
		}
		if _, dup := seen[w.Key]; dup {
			continue
		}
		seen[w.Key] = struct{}{}
		d.Words = append(d.Words, w)
	}
	if len(d.Words) == 0 {
		return nil, fmt.Errorf("words: dictionary %q has no usable words", id)
	}
	return d, nil
}

// Count returns the number of unique words admitted by difficulty.
func (d *Dictionary) Count(difficulty Difficulty) int {
	n := 0
	for _, w := range d.Words {
		if difficulty.Admits(w.Letters) {
			n++
		}
	}
	return n
}

// Parse reads a word list in the format described above.
func Parse(id string, r io.Reader, now time.Time) (*Dictionary, error) {
	var (
		name, language string
		active         = true
		entries        []string
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			k, v, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "#")), ":")
			if !ok {
				continue
			}
			v = strings.TrimSpace(v)
			switch strings.ToLower(strings.TrimSpace(k)) {
			case "name":
				name = v
			case "language":
				language = v
			case "active":
				if b, err := strconv.ParseBool(v); err == nil {
					active = b
				}
			}
			continue
		}
		entries = append(entries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("words: read %s: %w", id, err)
	}
	d, err := NewDictionary(id, name, language, entries, now)
	if err != nil {
		return nil, err
	}
	d.Active = active
	return d, nil
}
