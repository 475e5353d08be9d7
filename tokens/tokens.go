// Package tokens implements the identifier grammar used to address projects and
// databases: ASCII strings of 1-32 characters, starting with a letter and
// continuing with letters or digits.
package tokens

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// MaxTokenSize is the maximum length, in bytes, of a valid token.
const MaxTokenSize = 32

// ProjectId identifies a tenant's project.
type ProjectId string

// DatabaseId identifies one of a project's embedded databases.
type DatabaseId string

// ParseProjectId validates raw and, if valid, returns it as a ProjectId.
func ParseProjectId(raw string) (ProjectId, error) {
	if !isValidToken(raw) {
		return "", invalidToken("project id", raw)
	}

	return ProjectId(raw), nil
}

// ParseDatabaseId validates raw and, if valid, returns it as a DatabaseId.
func ParseDatabaseId(raw string) (DatabaseId, error) {
	if !isValidToken(raw) {
		return "", invalidToken("database id", raw)
	}

	return DatabaseId(raw), nil
}

func (p ProjectId) String() string { return string(p) }

func (d DatabaseId) String() string { return string(d) }

// UnmarshalJSON implements json.Unmarshaler, validating the token grammar on decode.
func (p *ProjectId) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WithStack(err)
	}

	parsed, err := ParseProjectId(raw)
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler, validating the token grammar on decode.
func (d *DatabaseId) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WithStack(err)
	}

	parsed, err := ParseDatabaseId(raw)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

// DatabaseAddress uniquely addresses one embedded database within a project.
type DatabaseAddress struct {
	ProjectId  ProjectId
	DatabaseId DatabaseId
}

// NewDatabaseAddress validates both raw tokens and builds a DatabaseAddress.
func NewDatabaseAddress(rawProjectId, rawDatabaseId string) (DatabaseAddress, error) {
	projectId, err := ParseProjectId(rawProjectId)
	if err != nil {
		return DatabaseAddress{}, err
	}

	databaseId, err := ParseDatabaseId(rawDatabaseId)
	if err != nil {
		return DatabaseAddress{}, err
	}

	return DatabaseAddress{ProjectId: projectId, DatabaseId: databaseId}, nil
}

// String renders the address as "project/database", suitable for logging.
func (a DatabaseAddress) String() string {
	return fmt.Sprintf("%s/%s", a.ProjectId, a.DatabaseId)
}

// Filename returns the on-disk file name for a to the address, used when
// --db-dir is configured. Addresses sharing a directory never collide because
// both components come from the same restricted token grammar.
func (a DatabaseAddress) Filename() string {
	return fmt.Sprintf("%s-%s.sqlite", a.ProjectId, a.DatabaseId)
}

// isValidToken reports whether raw is a 1-32 byte ASCII string that starts
// with a letter and continues with letters or digits.
func isValidToken(raw string) bool {
	if len(raw) == 0 || len(raw) > MaxTokenSize {
		return false
	}

	for idx := 0; idx < len(raw); idx++ {
		b := raw[idx]
		isAlpha := (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
		isDigit := b >= '0' && b <= '9'

		if !isAlpha && !(idx > 0 && isDigit) {
			return false
		}
	}

	return true
}

func invalidToken(kind, raw string) error {
	return errors.Errorf("invalid %s: %q", kind, raw)
}
