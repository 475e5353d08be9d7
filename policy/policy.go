// Package policy defines the catalog of named, parameterised SQL statements
// a client can persist against a database and later invoke by name.
package policy

import "github.com/pkg/errors"

// Kind distinguishes a named statement that returns rows from one that doesn't.
type Kind string

const (
	Query    Kind = "query"
	Mutation Kind = "mutation"
)

// NamedSQL is one entry of a Policy: a name the client refers to it by, and
// the opaque SQL text it expands to.
type NamedSQL struct {
	Name   string `json:"name"`
	RawSQL string `json:"rawSql"`
}

// Policy is the full catalog persisted for one database.
type Policy struct {
	Queries   []NamedSQL `json:"queries"`
	Mutations []NamedSQL `json:"mutations"`
}

// Validate checks that every entry has a non-empty name and that
// (kind, name) pairs are unique within the policy.
func (p Policy) Validate() error {
	seen := make(map[string]struct{}, len(p.Queries)+len(p.Mutations))

	check := func(kind Kind, entries []NamedSQL) error {
		for _, e := range entries {
			if e.Name == "" {
				return errors.Errorf("%s entry has an empty name", kind)
			}

			key := string(kind) + "\x00" + e.Name
			if _, dup := seen[key]; dup {
				return errors.Errorf("duplicate %s named %q", kind, e.Name)
			}
			seen[key] = struct{}{}
		}

		return nil
	}

	if err := check(Query, p.Queries); err != nil {
		return err
	}

	return check(Mutation, p.Mutations)
}
