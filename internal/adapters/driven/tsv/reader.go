// Package tsv reads collection source files: one "pid<TAB>passage[<TAB>title]" row per line.
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineBytes bounds a single passage row
const maxLineBytes = 16 << 20

// Document is one row of a collection source
type Document struct {
	ID    string
	Text  string
	Title string
}

// Scan calls fn for every row in r, in file order.
// A leading "id"/"pid" header row is skipped. Blank lines are ignored.
// Duplicate ids and rows without a tab are errors carrying the line number.
func Scan(r io.Reader, fn func(Document) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	seen := make(map[string]struct{})
	line := 0
	for sc.Scan() {
		line++
		row := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(row) == "" {
			continue
		}

		fields := strings.SplitN(row, "\t", 3)
		if len(fields) < 2 {
			return fmt.Errorf("line %d: expected pid and passage separated by a tab", line)
		}

		id := strings.TrimSpace(fields[0])
		if len(seen) == 0 && isHeader(id) {
			continue
		}
		if id == "" {
			return fmt.Errorf("line %d: empty pid", line)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("line %d: duplicate pid %q", line, id)
		}
		seen[id] = struct{}{}

		doc := Document{ID: id, Text: fields[1]}
		if len(fields) == 3 {
			doc.Title = fields[2]
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", line+1, err)
	}
	return nil
}

func isHeader(id string) bool {
	switch strings.ToLower(id) {
	case "id", "pid", "docid":
		return true
	}
	return false
}

// ScanFile opens path and scans it
func ScanFile(path string, fn func(Document) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Scan(f, fn); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ReadPassages loads every passage of path keyed by pid
func ReadPassages(path string) (map[string]string, error) {
	out := make(map[string]string)
	err := ScanFile(path, func(d Document) error {
		out[d.ID] = d.Text
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
