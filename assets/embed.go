package assets

import (
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed dictionaries/*.txt
var FS embed.FS

// Dictionary is one embedded word list file.
type Dictionary struct {
	ID   string // file name without extension
	Data []byte
}

// Dictionaries returns every embedded word list, sorted by file name.
func Dictionaries() ([]Dictionary, error) {
	names, err := fs.Glob(FS, "dictionaries/*.txt")
	if err != nil {
		return nil, err
	}
	out := make([]Dictionary, 0, len(names))
	for _, name := range names {
		data, err := FS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		out = append(out, Dictionary{
			ID:   strings.TrimSuffix(path.Base(name), ".txt"),
			Data: data,
		})
	}
	return out, nil
}
