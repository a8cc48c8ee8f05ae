package store

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/gradebot/sheetscan/internal/identity"
	"github.com/gradebot/sheetscan/internal/model"
)

// rosterFile is the on-disk roster format:
//
//	entries:
//	  - name: "Jonathan Smith"
//	    role: Student
type rosterFile struct {
	Entries []rosterFileEntry `yaml:"entries"`
}

type rosterFileEntry struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// LoadRosterFile parses a YAML roster file into entries ready for
// ImportRoster, computing each entry's normalized matching key.
func LoadRosterFile(path string) ([]model.RosterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read roster file %s", path)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "store: parse roster file %s", path)
	}

	entries := make([]model.RosterEntry, 0, len(file.Entries))
	for i, fe := range file.Entries {
		if fe.Name == "" {
			return nil, eris.Errorf("store: roster entry %d has no name", i+1)
		}
		role := fe.Role
		if role == "" {
			role = "Student"
		}
		entries = append(entries, model.RosterEntry{
			FullName: fe.Name,
			NameKey:  identity.Normalize(fe.Name),
			Role:     role,
		})
	}
	return entries, nil
}
