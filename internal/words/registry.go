package words

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/podut/hangman-server/assets"
	"github.com/podut/hangman-server/internal/core"
)

// Registry holds the dictionaries known to the process and picks words
// from them. It is filled at startup and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	dicts map[string]*Dictionary
}

func NewRegistry() *Registry {
	return &Registry{dicts: make(map[string]*Dictionary)}
}

// Add registers d. Ids are unique; a dictionary is never replaced, so a
// list in use cannot shrink.
func (r *Registry) Add(d *Dictionary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dicts[d.ID]; ok {
		return fmt.Errorf("words: dictionary %q already registered", d.ID)
	}
	r.dicts[d.ID] = d
	return nil
}

// Get returns the dictionary with id.
func (r *Registry) Get(id string) (*Dictionary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dicts[id]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrDictionaryNotFound, id)
	}
	return d, nil
}

// List returns all dictionaries ordered by id. When activeOnly is set,
// inactive ones are skipped.
func (r *Registry) List(activeOnly bool) []*Dictionary {
	r.mu.RLock()
	out := make([]*Dictionary, 0, len(r.dicts))
	for _, d := range r.dicts {
		if activeOnly && !d.Active {
			continue
		}
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PickUnusedWord returns a word from dictID that fits difficulty and whose
// key is not in exclude.
//
// With a seed the pick is deterministic: candidates keep dictionary order
// and the word at seed mod len(candidates) is chosen. Without one the pick
// is cryptographically random.
func (r *Registry) PickUnusedWord(ctx context.Context, dictID string, difficulty Difficulty, exclude map[string]struct{}, seed *uint64) (Word, error) {
	if err := ctx.Err(); err != nil {
		return Word{}, err
	}
	d, err := r.Get(dictID)
	if err != nil {
		return Word{}, err
	}

	candidates := make([]Word, 0, len(d.Words))
	for _, w := range d.Words {
		if !difficulty.Admits(w.Letters) {
			continue
		}
		if _, used := exclude[w.Key]; used {
			continue
		}
		candidates = append(candidates, w)
	}
	if len(candidates) == 0 {
		return Word{}, fmt.Errorf("%w: dictionary %s has no unused %s words", core.ErrWordPoolExhausted, dictID, difficulty)
	}

	if seed != nil {
		return candidates[*seed%uint64(len(candidates))], nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(candidates))))
	if err != nil {
		return Word{}, fmt.Errorf("words: random pick: %w", err)
	}
	return candidates[n.Int64()], nil
}

// LoadDefaults registers the dictionaries embedded in the binary.
func (r *Registry) LoadDefaults(now time.Time) error {
	files, err := assets.Dictionaries()
	if err != nil {
		return fmt.Errorf("words: embedded dictionaries: %w", err)
	}
	for _, f := range files {
		d, err := Parse(f.ID, bytes.NewReader(f.Data), now)
		if err != nil {
			return err
		}
		if err := r.Add(d); err != nil {
			return err
		}
		log.Debug().Str("dictionary", d.ID).Int("words", len(d.Words)).Msg("embedded dictionary loaded")
	}
	return nil
}

// LoadDir registers every *.txt list in dir. The file name without
// extension becomes the dictionary id.
func (r *Registry) LoadDir(dir string, now time.Time) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)
	loaded := 0
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), ".txt")
		f, err := os.Open(p)
		if err != nil {
			return loaded, fmt.Errorf("words: open %s: %w", p, err)
		}
		d, err := Parse(id, f, now)
		f.Close()
		if err != nil {
			return loaded, err
		}
		if err := r.Add(d); err != nil {
			return loaded, err
		}
		loaded++
		log.Info().Str("dictionary", d.ID).Str("path", p).Int("words", len(d.Words)).Msg("dictionary loaded")
	}
	return loaded, nil
}
