package kcore

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Symbol is one entry of a kallsyms/System.map style symbol table.
type Symbol struct {
	Addr uint64
	Type string
	Name string
}

// SymbolTable resolves names to addresses and addresses to their nearest
// preceding symbol.
type SymbolTable struct {
	byName map[string]Symbol
	sorted []Symbol
}

// LoadSymbolMap parses a kallsyms or System.map format file. Each line is
// "addr type name", e.g. "ffffffff9d000000 T startup_64". Module suffixes
// ("[ext4]") are kept as part of the name.
func LoadSymbolMap(path string) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening symbol map")
	}
	defer f.Close()
	st, err := ParseSymbolMap(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %v", path)
	}
	return st, nil
}

func ParseSymbolMap(r io.Reader) (*SymbolTable, error) {
	st := &SymbolTable{byName: map[string]Symbol{}}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errors.Errorf("line %v: want \"addr type name\", got %q", lineno, line)
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %v: bad address", lineno)
		}
		sym := Symbol{Addr: addr, Type: fields[1], Name: strings.Join(fields[2:], " ")}
		// First definition wins, as in /proc/kallsyms.
		if _, ok := st.byName[sym.Name]; !ok {
			st.byName[sym.Name] = sym
		}
		st.sorted = append(st.sorted, sym)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Slice(st.sorted, func(i, j int) bool {
		return st.sorted[i].Addr < st.sorted[j].Addr
	})
	return st, nil
}

// Lookup returns the address of a named symbol.
func (st *SymbolTable) Lookup(name string) (uint64, bool) {
	sym, ok := st.byName[name]
	return sym.Addr, ok
}

// Nearest returns the greatest symbol at or below addr.
func (st *SymbolTable) Nearest(addr uint64) (Symbol, bool) {
	i := sort.Search(len(st.sorted), func(i int) bool {
		return st.sorted[i].Addr > addr
	})
	if i == 0 {
		return Symbol{}, false
	}
	return st.sorted[i-1], true
}

func (st *SymbolTable) Len() int {
	return len(st.sorted)
}
