package dialect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Location points at the part of a statement an error message blames.
// Line, Column and Offset are 1-based and zero when unknown. Offset counts
// characters, not bytes.
type Location struct {
	Line   int
	Column int
	Offset int
	Near   string
}

// Known reports whether the location carries any usable hint.
func (l Location) Known() bool {
	return l.Offset > 0 || l.Line > 0 || l.Near != ""
}

// ByteOffset resolves the location against sql and returns a byte offset,
// or -1 when nothing in sql matches. A line without a column only narrows
// where Near is searched; the line start is used when Near is absent or
// not found.
func (l Location) ByteOffset(sql string) int {
	if l.Offset > 0 {
		if b := runeToByte(sql, l.Offset-1); b >= 0 {
			return b
		}
	}
	start := -1
	if l.Line > 0 {
		start = lineStart(sql, l.Line)
	}
	if start >= 0 && l.Column > 0 {
		if b := runeToByte(sql[start:], l.Column-1); b >= 0 {
			return start + b
		}
	}
	if near := strings.TrimSpace(l.Near); near != "" {
		from := 0
		if start > 0 {
			from = start
		}
		if b := nearOffset(sql[from:], near); b >= 0 {
			return from + b
		}
		if from > 0 {
			if b := nearOffset(sql, near); b >= 0 {
				return b
			}
		}
	}
	return start
}

// lineStart returns the byte offset of the 1-based line n, or -1.
func lineStart(sql string, n int) int {
	start := 0
	for line := 1; line < n; line++ {
		i := strings.IndexByte(sql[start:], '\n')
		if i < 0 {
			return -1
		}
		start += i + 1
	}
	return start
}

// nearOffset finds the echoed text in sql, case-insensitively. Servers often
// echo only a prefix of the remaining text, so the first word is tried on
// its own as well.
func nearOffset(sql, near string) int {
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(near))
	if err == nil {
		if loc := re.FindStringIndex(sql); loc != nil {
			return loc[0]
		}
	}
	if f := strings.Fields(near); len(f) > 0 && f[0] != near {
		return nearOffset(sql, f[0])
	}
	return -1
}

func runeToByte(s string, n int) int {
	if n < 0 {
		return -1
	}
	i := 0
	for b := range s {
		if i == n {
			return b
		}
		i++
	}
	if i == n {
		return len(s)
	}
	return -1
}

// positioned is implemented by errors that already know their position,
// such as the local parser's syntax errors.
type positioned interface {
	Position() (line, column int)
}

// ErrorLocator extracts a Location from a database or parser error.
type ErrorLocator interface {
	Locate(err error) (Location, bool)
}

// Locator returns the ErrorLocator for d.
func Locator(d Dialect) ErrorLocator {
	switch d {
	case MySQL:
		return mysqlLocator{}
	case PostgreSQL:
		return postgresLocator{}
	case Oracle:
		return oracleLocator{}
	}
	return genericLocator{}
}

// causes lists err and everything it wraps, following both Cause and
// Unwrap chains.
func causes(err error) []error {
	var out []error
	for err != nil && len(out) < 32 {
		out = append(out, err)
		switch e := err.(type) {
		case interface{ Cause() error }:
			err = e.Cause()
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			err = nil
		}
	}
	return out
}

type genericLocator struct{}

func (genericLocator) Locate(err error) (Location, bool) {
	for _, e := range causes(err) {
		if p, ok := e.(positioned); ok {
			if line, col := p.Position(); line > 0 {
				return Location{Line: line, Column: col}, true
			}
		}
	}
	return Location{}, false
}

var (
	mysqlNear        = regexp.MustCompile(`(?s)near '(.*)' at line (\d+)`)
	mysqlQuoted      = regexp.MustCompile(`(?i)(?:unknown column|function|unknown table) '?([^' ]+)'?`)
	mysqlPosition    = regexp.MustCompile(`at position (\d+)(?: near '([^']*)')?`)
	postgresNear     = regexp.MustCompile(`at or near "([^"]*)"`)
	postgresFunc     = regexp.MustCompile(`function ([A-Za-z_][A-Za-z0-9_.]*)\(`)
	postgresColumn   = regexp.MustCompile(`(?:column|relation) "([^"]+)" does not exist`)
	postgresEcho     = regexp.MustCompile(`(?m)^(LINE (\d+): )(.*)\n(\s*)\^`)
	oracleQuoted     = regexp.MustCompile(`ORA-\d{5}: "([^"]+)"`)
	oracleLineColumn = regexp.MustCompile(`(?i)line:?\s*(\d+),?\s*column:?\s*(\d+)`)
)

type mysqlLocator struct{}

func (mysqlLocator) Locate(err error) (Location, bool) {
	if loc, ok := (genericLocator{}).Locate(err); ok {
		return loc, true
	}
	msg := err.Error()
	for _, e := range causes(err) {
		if me, ok := e.(*mysql.MySQLError); ok {
			msg = me.Message
			break
		}
	}
	if m := mysqlNear.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[2])
		return Location{Line: line, Near: m[1]}, true
	}
	if m := mysqlQuoted.FindStringSubmatch(msg); m != nil {
		name := m[1]
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		return Location{Near: name}, true
	}
	// vitess reports the byte position just past the offending token.
	if m := mysqlPosition.FindStringSubmatch(msg); m != nil {
		if m[2] != "" {
			return Location{Near: m[2]}, true
		}
		pos, _ := strconv.Atoi(m[1])
		return Location{Offset: pos}, pos > 0
	}
	return Location{}, false
}

type postgresLocator struct{}

func (postgresLocator) Locate(err error) (Location, bool) {
	if loc, ok := (genericLocator{}).Locate(err); ok {
		return loc, true
	}
	msg := err.Error()
	for _, e := range causes(err) {
		pe, ok := e.(*pq.Error)
		if !ok {
			continue
		}
		msg = pe.Message
		if pos, convErr := strconv.Atoi(pe.Position); convErr == nil && pos > 0 {
			loc := Location{Offset: pos}
			if m := postgresNear.FindStringSubmatch(msg); m != nil {
				loc.Near = m[1]
			}
			return loc, true
		}
		break
	}
	if m := postgresEcho.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[2])
		col := len([]rune(m[4])) - len([]rune(m[1])) + 1
		if col < 1 {
			col = 1
		}
		return Location{Line: line, Column: col}, true
	}
	for _, re := range []*regexp.Regexp{postgresNear, postgresFunc, postgresColumn} {
		if m := re.FindStringSubmatch(msg); m != nil {
			return Location{Near: m[1]}, true
		}
	}
	return Location{}, false
}

type oracleLocator struct{}

func (oracleLocator) Locate(err error) (Location, bool) {
	if loc, ok := (genericLocator{}).Locate(err); ok {
		return loc, true
	}
	msg := err.Error()
	var loc Location
	if m := oracleLineColumn.FindStringSubmatch(msg); m != nil {
		loc.Line, _ = strconv.Atoi(m[1])
		loc.Column, _ = strconv.Atoi(m[2])
	}
	if m := oracleQuoted.FindStringSubmatch(msg); m != nil {
		loc.Near = m[1]
	}
	// Clause-level errors such as ORA-00933 carry no position; the caller
	// falls back to the piece it just rewrote.
	return loc, loc.Known()
}
