package survey

import (
	"encoding/json"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/schoolbond/fs"
)

// SeedQuestions returns the questionnaire of every role.
func SeedQuestions() ([]Question, error) {
	var questions []Question
	if err := readSeed(appfs.QuestionsSeedFile, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// SeedMicroRituals returns the suggested micro-rituals.
func SeedMicroRituals() ([]MicroRitual, error) {
	var rituals []MicroRitual
	if err := readSeed(appfs.MicroRitualsSeedFile, &rituals); err != nil {
		return nil, err
	}
	return rituals, nil
}

func readSeed(name string, v interface{}) error {
	data, err := appfs.Seed.ReadFile(name)
	if err != nil {
		return errors.Wrapf(err, "reading %s", name)
	}
	if err = json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decoding %s", name)
	}
	return nil
}
