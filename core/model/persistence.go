package model

import (
	"encoding/gob"
	"os"

	"github.com/ceschini/lichess-win-prediction/pkg/errors"
)

// SaveModel saves a fitted model to a file using gob encoding.
//
// Example:
//
//	nb := naivebayes.NewGaussianNB()
//	// ... fit ...
//	err := model.SaveModel(nb, "model.gob")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create model file %q", filename)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(model); err != nil {
		return errors.Wrapf(err, "failed to encode model to %q", filename)
	}

	return nil
}

// LoadModel loads a model from a file written by SaveModel. The target
// must be a pointer to the same concrete type that was saved.
//
// Example:
//
//	var nb naivebayes.GaussianNB
//	err := model.LoadModel(&nb, "model.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open model file %q", filename)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(model); err != nil {
		return errors.Wrapf(err, "failed to decode model from %q", filename)
	}

	return nil
}
