package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadMigrations reads every numbered sub-directory of dir (0001/, 0002/, ...)
// and compiles the CUE files inside it into one Migration. The result is
// sorted by version.
//
// A directory whose name is not a number is an error, as is a version field
// that disagrees with the directory name.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	ctx := cuecontext.New()
	seen := make(map[int]string)
	var migrations []Migration

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		version, err := strconv.Atoi(entry.Name())
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration directory %q: name must be a positive version number", entry.Name())
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d declared by both %q and %q", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		value, err := buildDir(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		m, err := CompileMigration(value)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
		if m.Version != 0 && m.Version != version {
			return nil, fmt.Errorf("migration %s: version field %d does not match directory", entry.Name(), m.Version)
		}
		m.Version = version
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// buildDir compiles and unifies every .cue file directly inside dir.
func buildDir(ctx *cue.Context, dir string) (cue.Value, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return cue.Value{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE files found in %s", dir)
	}
	sort.Strings(files)

	var value cue.Value
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		if i == 0 {
			value = v
		} else {
			value = value.Unify(v)
		}
	}
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}
