// Package curriculum evaluates the coach against an ordered set of levels of
// scripted scenarios. Each level must be passed before the next unlocks.
package curriculum

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/resume-coach/internal/types"
)

//go:embed curriculum.json
var defaultCurriculum []byte

var validate = validator.New()

// LoadLevels decodes and validates a curriculum definition and returns its
// levels sorted by number.
func LoadLevels(data []byte) ([]types.TrainingLevel, error) {
	var levels []types.TrainingLevel
	if err := json.Unmarshal(data, &levels); err != nil {
		return nil, &DefinitionError{Message: "malformed json", Cause: err}
	}
	if len(levels) == 0 {
		return nil, &DefinitionError{Message: "no levels defined"}
	}

	numbers := make(map[int]bool, len(levels))
	scenarios := make(map[string]bool)
	for i := range levels {
		l := &levels[i]
		if err := validate.Struct(l); err != nil {
			return nil, &DefinitionError{Message: fmt.Sprintf("level %d", l.Number), Cause: err}
		}
		if numbers[l.Number] {
			return nil, &DefinitionError{Message: fmt.Sprintf("duplicate level %d", l.Number)}
		}
		numbers[l.Number] = true
		for _, s := range l.Scenarios {
			if scenarios[s.ID] {
				return nil, &DefinitionError{Message: fmt.Sprintf("duplicate scenario %q", s.ID)}
			}
			scenarios[s.ID] = true
		}
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].Number < levels[j].Number })
	return levels, nil
}

// DefaultLevels returns the embedded curriculum.
func DefaultLevels() ([]types.TrainingLevel, error) {
	return LoadLevels(defaultCurriculum)
}
