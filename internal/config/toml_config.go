package config

import (
	stderrors "errors"
	"io/fs"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/standardbeagle/gtc/internal/errors"
)

// TOMLFile is read when no KDL file is present
const TOMLFile = ".gtc.toml"

// LoadTOML loads .gtc.toml from dir over the defaults. A missing file
// yields (nil, nil).
func LoadTOML(fsys afero.Fs, dir string) (*Config, error) {
	path := filepath.Join(dir, TOMLFile)

	content, err := afero.ReadFile(fsys, path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewConfigError("file", path, err)
	}

	cfg := Default("")
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, errors.NewConfigError("file", path, err)
	}
	cfg.Corpus.Root = resolveRoot(cfg.Corpus.Root, dir)
	return cfg, nil
}
