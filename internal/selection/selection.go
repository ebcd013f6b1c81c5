// Package selection parses menu input for the interactive mode. Parsing is a
// pure function over the typed-in string and the list length, kept apart from
// prompt I/O so it can be tested without a terminal.
package selection

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Kind is the shape of a parsed selection.
type Kind int

const (
	// KindIndices selects specific numbered entries.
	KindIndices Kind = iota
	// KindAll selects every entry (the "A" shortcut).
	KindAll
	// KindSkip selects nothing and disables the filter (the "X" shortcut).
	KindSkip
	// KindCustom asks for a free-form value instead (the "T" shortcut).
	KindCustom
)

// Options declares which shortcuts a particular menu accepts.
type Options struct {
	AllowAll    bool
	AllowSkip   bool
	AllowCustom bool
}

// Selection is a validated menu choice. Indices are 1-based positions into
// the presented list and only set for KindIndices.
type Selection struct {
	Kind    Kind
	Indices []int
}

// Parse validates raw menu input against a list of n entries. Invalid input
// never yields a partial selection: either every token is accepted or an
// error describes the first offending one.
func Parse(input string, n int, opts Options) (Selection, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Selection{}, fmt.Errorf("empty selection")
	}

	switch strings.ToUpper(trimmed) {
	case "A":
		if opts.AllowAll {
			return Selection{Kind: KindAll}, nil
		}
		return Selection{}, fmt.Errorf("A (all) is not available here")
	case "X":
		if opts.AllowSkip {
			return Selection{Kind: KindSkip}, nil
		}
		return Selection{}, fmt.Errorf("X (skip) is not available here")
	case "T":
		if opts.AllowCustom {
			return Selection{Kind: KindCustom}, nil
		}
		return Selection{}, fmt.Errorf("T (type a value) is not available here")
	}

	var indices []int
	seen := make(map[int]bool)
	for _, token := range strings.Split(trimmed, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return Selection{}, fmt.Errorf("empty entry in selection %q", input)
		}
		idx, err := strconv.Atoi(token)
		if err != nil {
			return Selection{}, fmt.Errorf("invalid selection %q: not a number", token)
		}
		if idx < 1 || idx > n {
			return Selection{}, fmt.Errorf("selection %d is out of range (1-%d)", idx, n)
		}
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}

	return Selection{Kind: KindIndices, Indices: indices}, nil
}

// Apply maps a selection onto the presented items. KindSkip and KindCustom
// yield nothing; the caller handles their side of the flow.
func Apply(sel Selection, items []string) []string {
	switch sel.Kind {
	case KindAll:
		return append([]string(nil), items...)
	case KindIndices:
		out := make([]string, 0, len(sel.Indices))
		for _, idx := range sel.Indices {
			out = append(out, items[idx-1])
		}
		return out
	default:
		return nil
	}
}

// ExpandAll resolves the ALL sentinel an entry list may carry: when any
// chosen entry is "ALL", the whole universe (minus sentinels) is returned.
func ExpandAll(chosen, universe []string) []string {
	sentinel := false
	for _, c := range chosen {
		if strings.EqualFold(c, "ALL") {
			sentinel = true
			break
		}
	}
	if !sentinel {
		return chosen
	}
	out := make([]string, 0, len(universe))
	for _, u := range universe {
		if !strings.EqualFold(u, "ALL") {
			out = append(out, u)
		}
	}
	return out
}

// ReadList loads a line-oriented list file: one entry per line, blank lines
// and #-comments ignored.
func ReadList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open list file %s: %w", path, err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read list file %s: %w", path, err)
	}
	return entries, nil
}
