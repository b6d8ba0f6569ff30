package mapping

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed tables/*.yaml
var builtinFS embed.FS

// Catalog is an ordered, validated set of table descriptors.
type Catalog struct {
	tables []*Table
	byName map[string]*Table
}

// NewCatalog validates the descriptors individually and as a set.
func NewCatalog(tables []*Table) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Table, len(tables))}
	var result *multierror.Error
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
		key := strings.ToLower(t.Name)
		if _, dup := c.byName[key]; dup {
			result = multierror.Append(result, fmt.Errorf("%s: duplicate table name", t.Name))
			continue
		}
		c.byName[key] = t
		c.tables = append(c.tables, t)
	}

	cursors := make(map[string]string)
	for _, t := range c.tables {
		key := strings.ToLower(t.CursorKey())
		if other, ok := cursors[key]; ok {
			result = multierror.Append(result, fmt.Errorf("%s: cursor key %q already used by %s", t.Name, t.CursorKey(), other))
		}
		cursors[key] = t.Name

		for _, dep := range t.Dependencies() {
			if strings.EqualFold(dep, t.Name) {
				result = multierror.Append(result, fmt.Errorf("%s: table cannot reference itself", t.Name))
			} else if _, ok := c.byName[strings.ToLower(dep)]; !ok {
				result = multierror.Append(result, fmt.Errorf("%s: references unknown table %q", t.Name, dep))
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return c, nil
}

// Builtin returns the catalog of embedded descriptors.
func Builtin() (*Catalog, error) {
	tables, err := builtinTables()
	if err != nil {
		return nil, err
	}
	return NewCatalog(tables)
}

// Load returns the builtin descriptors overlaid with the *.yaml and *.yml
// files found in dir. A descriptor whose name matches a builtin one replaces
// it in place; new names are appended in file order. An empty dir yields the
// builtin catalog.
func Load(fsys afero.Fs, dir string) (*Catalog, error) {
	tables, err := builtinTables()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return NewCatalog(tables)
	}

	files, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables directory %s: %w", dir, err)
	}

	index := make(map[string]int, len(tables))
	for i, t := range tables {
		index[strings.ToLower(t.Name)] = i
	}

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name()))
		if f.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		name := filepath.Join(dir, f.Name())
		data, err := afero.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		parsed, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for _, t := range parsed {
			if i, ok := index[strings.ToLower(t.Name)]; ok {
				tables[i] = t
				continue
			}
			index[strings.ToLower(t.Name)] = len(tables)
			tables = append(tables, t)
		}
	}

	return NewCatalog(tables)
}

// Parse decodes one or more YAML documents, each describing a table.
// Unknown fields are rejected.
func Parse(data []byte) ([]*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var tables []*Table
	for {
		var t Table
		err := dec.Decode(&t)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse table descriptor: %w", err)
		}
		tables = append(tables, &t)
	}
	return tables, nil
}

func builtinTables() ([]*Table, error) {
	names, err := fs.Glob(builtinFS, "tables/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var tables []*Table
	for _, name := range names {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		parsed, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		tables = append(tables, parsed...)
	}
	return tables, nil
}

// Table returns the descriptor whose name, cursor key or source table
// matches name, ignoring case.
func (c *Catalog) Table(name string) (*Table, error) {
	if t, ok := c.byName[strings.ToLower(name)]; ok {
		return t, nil
	}
	for _, t := range c.tables {
		if strings.EqualFold(t.CursorKey(), name) || strings.EqualFold(t.Source.Table, name) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", etl.ErrTableNotFound, name)
}

// Select returns the named descriptors in the given order.
func (c *Catalog) Select(names ...string) ([]*Table, error) {
	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		t, err := c.Table(name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Tables returns every descriptor in catalog order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, len(c.tables))
	copy(out, c.tables)
	return out
}

// Names returns the descriptor names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tables))
	for i, t := range c.tables {
		names[i] = t.Name
	}
	return names
}
