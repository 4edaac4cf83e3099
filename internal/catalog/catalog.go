// Package catalog tracks table and index definitions: a registry of
// tables, each with its schema and secondary index definitions.
package catalog

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kartikbazzad/reactorcore/internal/errs"
	"github.com/kartikbazzad/reactorcore/internal/model"
)

const (
	DefaultTable    = "_default"
	MaxTableNameLen = 64
	PrimaryIndex    = "primary"
)

// Table holds one table's metadata and index definitions.
type Table struct {
	Meta    model.CollectionMeta
	Indexes map[string]*model.IndexDefinition // includes PrimaryIndex
	Schema  *Schema
}

// Catalog is the registry of tables, their indexes, and schemas.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// New creates a catalog with the default table pre-registered.
func New() *Catalog {
	c := &Catalog{tables: make(map[string]*Table)}
	c.tables[DefaultTable] = newTable(DefaultTable)
	return c
}

func newTable(name string) *Table {
	return &Table{
		Meta: model.CollectionMeta{Name: name, CreatedAt: time.Now()},
		Indexes: map[string]*model.IndexDefinition{
			PrimaryIndex: {Name: PrimaryIndex, Table: name, Primary: true},
		},
		Schema: NewSchema(nil),
	}
}

// ValidateTableName enforces the naming rules a table name must satisfy.
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("table name must be valid UTF-8")
	}
	if len(name) > MaxTableNameLen {
		return fmt.Errorf("table name exceeds maximum length of %d bytes", MaxTableNameLen)
	}
	if strings.ContainsAny(name, "/.") || strings.ContainsRune(name, 0) {
		return fmt.Errorf("table name contains a forbidden character")
	}
	return nil
}

// CreateTable registers a new table.
func (c *Catalog) CreateTable(name string) error {
	if err := ValidateTableName(name); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; exists {
		return fmt.Errorf("table %q already exists", name)
	}
	c.tables[name] = newTable(name)
	return nil
}

// DropTable removes an empty, non-default table.
func (c *Catalog) DropTable(name string) error {
	if name == DefaultTable {
		return fmt.Errorf("cannot drop default table")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, exists := c.tables[name]
	if !exists {
		return fmt.Errorf("table %q not found", name)
	}
	if t.Meta.DocCount > 0 {
		return fmt.Errorf("table %q is not empty", name)
	}
	delete(c.tables, name)
	return nil
}

// Table returns a table's definition.
func (c *Catalog) Table(name string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	return t, ok
}

// CreateIndex registers a secondary index on fields, returning its
// definition.
// Each field contributes exactly one scalar value per document; array
// values are not fanned out into multiple index entries.
func (c *Catalog) CreateIndex(table, name string, fields ...string) (*model.IndexDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[table]
	if !ok {
		return nil, errs.ErrUnknownIndex
	}
	if _, exists := t.Indexes[name]; exists {
		return nil, fmt.Errorf("index %q already exists on table %q", name, table)
	}
	def := &model.IndexDefinition{Name: name, Table: table}
	for _, f := range fields {
		def.Fields = append(def.Fields, model.IndexField{Name: f})
	}
	t.Indexes[name] = def
	return def, nil
}

// IndexesFor returns every index definition registered for table, including
// the primary index.
func (c *Catalog) IndexesFor(table string) []*model.IndexDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[table]
	if !ok {
		return nil
	}
	out := make([]*model.IndexDefinition, 0, len(t.Indexes))
	for _, def := range t.Indexes {
		out = append(out, def)
	}
	return out
}

// IncrementDocCount and DecrementDocCount maintain per-table bookkeeping.
func (c *Catalog) IncrementDocCount(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[table]; ok {
		t.Meta.DocCount++
	}
}

func (c *Catalog) DecrementDocCount(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[table]; ok && t.Meta.DocCount > 0 {
		t.Meta.DocCount--
	}
}
