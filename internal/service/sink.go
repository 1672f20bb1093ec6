package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact is one exported document.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

type Delivered struct {
	Name     string
	Location string
	Size     int
}

// Sink receives export artifacts.
type Sink interface {
	Deliver(ctx context.Context, a Artifact) (Delivered, error)
}

// DirSink writes artifacts into a directory, creating it when needed. Files
// are written to a temporary name and renamed into place.
type DirSink struct {
	Dir string
}

func (d DirSink) Deliver(ctx context.Context, a Artifact) (Delivered, error) {
	if err := ctx.Err(); err != nil {
		return Delivered{}, err
	}
	if a.Name != filepath.Base(a.Name) {
		return Delivered{}, fmt.Errorf("artifact name %q must not contain a path", a.Name)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return Delivered{}, fmt.Errorf("create export dir: %w", err)
	}
	final := filepath.Join(d.Dir, a.Name)
	tmp, err := os.CreateTemp(d.Dir, "."+a.Name+".*")
	if err != nil {
		return Delivered{}, fmt.Errorf("create %s: %w", a.Name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return Delivered{}, fmt.Errorf("write %s: %w", a.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return Delivered{}, fmt.Errorf("close %s: %w", a.Name, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return Delivered{}, fmt.Errorf("rename %s: %w", a.Name, err)
	}
	return Delivered{Name: a.Name, Location: final, Size: len(a.Data)}, nil
}
