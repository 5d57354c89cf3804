package testhelpers

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FaultFs wraps an afero.Fs and fails selected operations on selected paths.
// It stands in for files locked by another process or vanishing mid-call.
type FaultFs struct {
	afero.Fs

	mu         sync.Mutex
	openFails  map[string]error
	renameFail map[string]error
	removeFail map[string]error
	renames    []RenameCall
}

// RenameCall records one successful rename
type RenameCall struct {
	From string
	To   string
}

// NewFaultFs wraps base
func NewFaultFs(base afero.Fs) *FaultFs {
	return &FaultFs{
		Fs:         base,
		openFails:  make(map[string]error),
		renameFail: make(map[string]error),
		removeFail: make(map[string]error),
	}
}

// FailOpen makes Open/OpenFile of path fail
func (f *FaultFs) FailOpen(path string) *FaultFs {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openFails[filepath.Clean(path)] = &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
	return f
}

// FailRename makes renaming path (as source) fail
func (f *FaultFs) FailRename(path string) *FaultFs {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renameFail[filepath.Clean(path)] = &os.LinkError{Op: "rename", Old: path, New: "", Err: fs.ErrPermission}
	return f
}

// FailRemove makes removing path fail
func (f *FaultFs) FailRemove(path string) *FaultFs {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeFail[filepath.Clean(path)] = &fs.PathError{Op: "remove", Path: path, Err: fs.ErrPermission}
	return f
}

// Renames returns every successful rename in order
func (f *FaultFs) Renames() []RenameCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RenameCall, len(f.renames))
	copy(out, f.renames)
	return out
}

func (f *FaultFs) Open(name string) (afero.File, error) {
	f.mu.Lock()
	err := f.openFails[filepath.Clean(name)]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Fs.Open(name)
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f.mu.Lock()
	err := f.openFails[filepath.Clean(name)]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *FaultFs) Rename(oldname, newname string) error {
	f.mu.Lock()
	err := f.renameFail[filepath.Clean(oldname)]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := f.Fs.Rename(oldname, newname); err != nil {
		return err
	}
	f.mu.Lock()
	f.renames = append(f.renames, RenameCall{From: oldname, To: newname})
	f.mu.Unlock()
	return nil
}

func (f *FaultFs) Remove(name string) error {
	f.mu.Lock()
	err := f.removeFail[filepath.Clean(name)]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Fs.Remove(name)
}
