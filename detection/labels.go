package detection

import (
	"fmt"
	"os"
	"strings"
)

// ClassTable is the ordered class name table loaded from the label file.
// It is read-only after construction.
type ClassTable struct {
	names []string
	index map[string]int
}

// LoadClassTable reads a newline-delimited label file; line index is the class id
func LoadClassTable(path string) (*ClassTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read class names: %w", err)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	// trailing blank lines carry no class
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	table, err := NewClassTable(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("Loaded %d class names from %s", table.Len(), path)
	return table, nil
}

// NewClassTable builds a table from names in class id order
func NewClassTable(names []string) (*ClassTable, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty class table")
	}
	t := &ClassTable{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		n = strings.TrimSpace(n)
		t.names[i] = n
		key := classKey(n)
		if _, dup := t.index[key]; !dup && key != "" {
			t.index[key] = i
		}
	}
	return t, nil
}

// Len returns the number of classes
func (t *ClassTable) Len() int {
	return len(t.names)
}

// Name returns the class name for id, or a placeholder for ids outside the table
func (t *ClassTable) Name(id int) string {
	if id < 0 || id >= len(t.names) {
		return fmt.Sprintf("class_%d", id)
	}
	return t.names[id]
}

// Lookup returns the class id for a name. Matching ignores case and
// treats underscores as spaces.
func (t *ClassTable) Lookup(name string) (int, error) {
	if id, ok := t.index[classKey(name)]; ok {
		return id, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownClass, name)
}

func classKey(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
}

// CheckCount validates the table against the number of classes a model emits
func (t *ClassTable) CheckCount(modelClasses int) error {
	if modelClasses != len(t.names) {
		return fmt.Errorf("%w: label file has %d names, model emits %d classes",
			ErrClassCountMismatch, len(t.names), modelClasses)
	}
	return nil
}
