package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pressdesk/internal/driveapi"
)

// fakeDrive is an in-memory stand-in for the Drive client, enough to
// exercise every store operation without the network.
type fakeDrive struct {
	mu    sync.Mutex
	seq   int
	files map[string]*fakeFile

	// listErr, when set, fails List calls matching the hook.
	listErr func(folderID, name string) error
}

type fakeFile struct {
	id       string
	name     string
	parent   string
	content  []byte
	trashed  bool
	modified time.Time
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{files: make(map[string]*fakeFile)}
}

func (d *fakeDrive) add(name, parent string, content []byte) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(name, parent, content)
}

func (d *fakeDrive) addLocked(name, parent string, content []byte) string {
	d.seq++
	id := fmt.Sprintf("file-%d", d.seq)
	d.files[id] = &fakeFile{
		id:       id,
		name:     name,
		parent:   parent,
		content:  append([]byte(nil), content...),
		modified: time.Now().UTC(),
	}
	return id
}

func (d *fakeDrive) trash(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.files[id]; ok {
		f.trashed = true
	}
}

func (d *fakeDrive) countIn(folderID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, f := range d.files {
		if f.parent == folderID && !f.trashed {
			n++
		}
	}
	return n
}

func (d *fakeDrive) findIn(folderID, name string) *fakeFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.files {
		if f.parent == folderID && f.name == name && !f.trashed {
			return f
		}
	}
	return nil
}

func (d *fakeDrive) List(_ context.Context, folderID, name string) ([]driveapi.File, error) {
	if d.listErr != nil {
		if err := d.listErr(folderID, name); err != nil {
			return nil, err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []driveapi.File
	for _, f := range d.files {
		if f.parent != folderID || f.trashed {
			continue
		}
		if name != "" && f.name != name {
			continue
		}
		out = append(out, d.toAPILocked(f))
	}
	return out, nil
}

func (d *fakeDrive) Get(_ context.Context, fileID string) (*driveapi.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	af := d.toAPILocked(f)
	return &af, nil
}

func (d *fakeDrive) Download(_ context.Context, fileID string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	return append([]byte(nil), f.content...), nil
}

func (d *fakeDrive) Create(_ context.Context, name, folderID string, content []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(name, folderID, content), nil
}

func (d *fakeDrive) Update(_ context.Context, fileID string, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[fileID]
	if !ok {
		return fmt.Errorf("file not found: %s", fileID)
	}
	f.content = append([]byte(nil), content...)
	f.modified = time.Now().UTC()
	return nil
}

func (d *fakeDrive) Copy(_ context.Context, fileID, newName, folderID string) (*driveapi.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	src, ok := d.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	id := d.addLocked(newName, folderID, src.content)
	af := d.toAPILocked(d.files[id])
	return &af, nil
}

func (d *fakeDrive) Delete(_ context.Context, fileID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[fileID]; !ok {
		return fmt.Errorf("file not found: %s", fileID)
	}
	delete(d.files, fileID)
	return nil
}

func (d *fakeDrive) SharePublic(context.Context, string) error {
	return nil
}

func (d *fakeDrive) toAPILocked(f *fakeFile) driveapi.File {
	return driveapi.File{
		ID:           f.id,
		Name:         f.name,
		Parents:      []string{f.parent},
		Trashed:      f.trashed,
		ModifiedTime: f.modified,
		WebViewLink:  "https://drive.example/" + f.id,
	}
}
