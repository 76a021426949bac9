// Package knowledge holds the per-dialect catalogs of keywords, functions
// and operators together with their signatures.
package knowledge

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
	"gopkg.in/yaml.v3"

	"cracksql/internal/dialect"
	"cracksql/internal/signature"
)

var (
	// ErrCatalogLoad is returned when a catalog file cannot be read.
	ErrCatalogLoad = errors.NewKind("knowledge: cannot load %s catalog")

	// ErrInvalidEntry marks a catalog entry that is skipped at load time.
	ErrInvalidEntry = errors.NewKind("knowledge: entry %q: %s")
)

//go:embed catalogs/*.yaml
var catalogFS embed.FS

// Category is the kind of construct a catalog entry describes.
type Category string

const (
	CategoryFunction Category = "function"
	CategoryKeyword  Category = "keyword"
	CategoryOperator Category = "operator"
)

// Entry is one catalogued construct of a dialect.
type Entry struct {
	Name        string   `yaml:"name"`
	Category    Category `yaml:"category"`
	Rule        string   `yaml:"rule"`
	Targets     []string `yaml:"targets"`
	Description string   `yaml:"description"`
	Detail      string   `yaml:"detail,omitempty"`
	Frequency   int      `yaml:"frequency,omitempty"`
	// SignatureText pins a curated signature instead of deriving one.
	SignatureText string `yaml:"signature,omitempty"`

	Dialect   dialect.Dialect `yaml:"-"`
	Signature *signature.Tree `yaml:"-"`
	// Order is the position of the entry in its catalog file.
	Order int `yaml:"-"`
}

// IsFunction reports whether the entry describes a function.
func (e *Entry) IsFunction() bool {
	return e.Category == CategoryFunction
}

func (e *Entry) validate() error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return ErrInvalidEntry.New(e.Name, "missing name")
	case e.Category != CategoryFunction && e.Category != CategoryKeyword && e.Category != CategoryOperator:
		return ErrInvalidEntry.New(e.Name, "unknown category "+string(e.Category))
	case e.Rule == "" && e.SignatureText == "":
		return ErrInvalidEntry.New(e.Name, "missing rule")
	case len(e.Targets) == 0 && e.SignatureText == "":
		return ErrInvalidEntry.New(e.Name, "missing targets")
	}
	return nil
}

type catalogFile struct {
	Dialect string   `yaml:"dialect"`
	Entries []*Entry `yaml:"entries"`
}

// Catalog is the immutable set of entries of one dialect.
type Catalog struct {
	Dialect dialect.Dialect

	entries []*Entry
	byRoot  map[string][]*Entry
	byName  map[string]*Entry
}

func newCatalog(d dialect.Dialect) *Catalog {
	return &Catalog{
		Dialect: d,
		byRoot:  make(map[string][]*Entry),
		byName:  make(map[string]*Entry),
	}
}

func (c *Catalog) add(e *Entry) {
	c.entries = append(c.entries, e)
	root := strings.ToLower(e.Signature.Name)
	c.byRoot[root] = append(c.byRoot[root], e)
	if _, ok := c.byName[strings.ToUpper(e.Name)]; !ok {
		c.byName[strings.ToUpper(e.Name)] = e
	}
}

// Entries returns every usable entry in file order.
func (c *Catalog) Entries() []*Entry {
	return c.entries
}

// Lookup returns the entries whose signature is rooted at rule.
func (c *Catalog) Lookup(rule string) []*Entry {
	return c.byRoot[strings.ToLower(rule)]
}

// Get returns the entry with the given name.
func (c *Catalog) Get(name string) (*Entry, bool) {
	e, ok := c.byName[strings.ToUpper(name)]
	return e, ok
}

// Has reports whether the catalog lists a construct of the same name and
// category, meaning it is available in this dialect as is.
func (c *Catalog) Has(name string, category Category) bool {
	e, ok := c.Get(name)
	return ok && e.Category == category
}

// Compatible reports whether e, an entry of another dialect, is available
// here unchanged: same name, same category and the same signature.
func (c *Catalog) Compatible(e *Entry) bool {
	mine, ok := c.Get(e.Name)
	return ok && mine.Category == e.Category && mine.Signature.Equal(e.Signature)
}

func readCatalogFile(d dialect.Dialect, dir string) (*catalogFile, error) {
	var (
		data []byte
		err  error
	)
	name := string(d) + ".yaml"
	if dir != "" {
		data, err = os.ReadFile(filepath.Join(dir, name))
	} else {
		data, err = catalogFS.ReadFile("catalogs/" + name)
	}
	if err != nil {
		return nil, ErrCatalogLoad.Wrap(err, d)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, ErrCatalogLoad.Wrap(err, d)
	}
	if file.Dialect != "" && file.Dialect != string(d) {
		return nil, ErrCatalogLoad.Wrap(fmt.Errorf("file declares dialect %s", file.Dialect), d)
	}
	return &file, nil
}
