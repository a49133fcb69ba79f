package database

import (
	"fmt"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Statement builds one SurrealQL statement with positional bound variables.
// Variables are named $p0, $p1 ... so assignments never collide.
type Statement struct {
	vars    map[string]interface{}
	sets    []string
	counter int
}

// NewStatement creates an empty statement builder
func NewStatement() *Statement {
	return &Statement{vars: make(map[string]interface{})}
}

// Var binds a named variable used outside the SET clause, such as $tb or $id
func (s *Statement) Var(name string, value interface{}) *Statement {
	s.vars[name] = value
	return s
}

// Bind registers value and returns its placeholder
func (s *Statement) Bind(value interface{}) string {
	name := fmt.Sprintf("p%d", s.counter)
	s.counter++
	s.vars[name] = value
	return "$" + name
}

// Assign appends "target = expr" to the SET clause
func (s *Statement) Assign(target, expr string) {
	s.sets = append(s.sets, target+" = "+expr)
}

// Empty reports whether no assignments were added
func (s *Statement) Empty() bool {
	return len(s.sets) == 0
}

// Set renders the SET clause
func (s *Statement) Set() string {
	return "SET " + strings.Join(s.sets, ", ")
}

// Vars returns the bound variables
func (s *Statement) Vars() map[string]interface{} {
	return s.vars
}

// FieldPath converts a dotted path into a SurrealQL idiom, rejecting anything
// that is not a plain identifier chain.
func FieldPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty field path", ErrQuery)
	}
	for _, seg := range strings.Split(path, ".") {
		if !identPattern.MatchString(seg) {
			return "", fmt.Errorf("%w: invalid field path %q", ErrQuery, path)
		}
	}
	return path, nil
}

// KeyPath addresses an arbitrary object key below a field path
func KeyPath(path, key string) (string, error) {
	base, err := FieldPath(path)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%w: empty object key", ErrQuery)
	}
	escaped := strings.NewReplacer(`\`, `\\`, "⟩", `\⟩`).Replace(key)
	return base + ".⟨" + escaped + "⟩", nil
}
