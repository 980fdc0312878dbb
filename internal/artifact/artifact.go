// Package artifact loads the JSON exports of externally fitted models.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// NotFoundError reports a missing artifact file. It is kept distinct from
// decode failures because it is fixed by deploying the file, not by code.
type NotFoundError struct {
	Kind string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s artifact %q not found", e.Kind, e.Path)
}

// Is lets errors.Is(err, fs.ErrNotExist) match a NotFoundError
func (e *NotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// LoadJSON decodes the artifact at path into v. Unknown fields are rejected
// so that an export from a different model family fails loudly.
func LoadJSON(kind, path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &NotFoundError{Kind: kind, Path: path}
		}
		return fmt.Errorf("open %s artifact: %w", kind, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s artifact %q: %w", kind, path, err)
	}
	return nil
}
