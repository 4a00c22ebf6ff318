package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// File is a Memory store that is loaded from and saved to a YAML file of
// key: value pairs. Every SetValue rewrites the file.
type File struct {
	*Memory
	path string
}

// OpenFile loads path on top of the default table. A missing file is not an
// error; it is created on the first SetValue. Unknown keys in the file are
// ignored.
func OpenFile(path string) (*File, error) {
	f := &File{Memory: NewMemory(Defaults()), path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	for k, v := range values {
		if _, ok := f.Lookup(k); !ok {
			continue
		}
		f.Memory.SetValue(k, v)
	}
	return f, nil
}

func (f *File) SetValue(key, value string) error {
	if err := f.Memory.SetValue(key, value); err != nil {
		return err
	}
	return f.Save()
}

func (f *File) Save() error {
	values := make(map[string]string)
	for _, e := range f.Entries() {
		values[e.Name] = e.Value
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing %q: %w", tmp, err)
	}
	return os.Rename(tmp, f.path)
}
