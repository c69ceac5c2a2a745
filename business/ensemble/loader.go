package ensemble

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// flexBools decodes default_left written either as booleans or as 0/1 integers.
type flexBools []bool

func (b *flexBools) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch s := strings.TrimSpace(string(r)); s {
		case "true", "1":
			out[i] = true
		case "false", "0":
			out[i] = false
		default:
			return fmt.Errorf("default_left[%d]: unexpected value %s", i, s)
		}
	}
	*b = out
	return nil
}

// flexFloat decodes numbers, numeric strings ("5E-1") and the bracketed form ("[5E-1]").
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.value, f.set = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("base_score: %w", err)
	}
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("base_score: %w", err)
	}
	f.value, f.set = v, true
	return nil
}

// document covers both the flat description and the booster save_model layout.
type document struct {
	Trees     []TreeDescription `json:"trees"`
	BaseScore flexFloat         `json:"base_score"`
	Learner   *struct {
		LearnerModelParam struct {
			BaseScore flexFloat `json:"base_score"`
		} `json:"learner_model_param"`
		GradientBooster struct {
			Model struct {
				Trees []TreeDescription `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
	} `json:"learner"`
}

// DecodeDescription parses an ensemble description from r.
func DecodeDescription(model string, r io.Reader) (Description, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Description{}, &ModelFormatError{Model: model, Reason: "decode ensemble", Err: err}
	}

	desc := Description{Trees: doc.Trees}
	bs := doc.BaseScore
	if doc.Learner != nil {
		if len(desc.Trees) == 0 {
			desc.Trees = doc.Learner.GradientBooster.Model.Trees
		}
		if !bs.set {
			bs = doc.Learner.LearnerModelParam.BaseScore
		}
	}
	if !bs.set {
		return Description{}, formatErr(model, "base_score missing")
	}
	desc.BaseScore = bs.value
	return desc, nil
}

// DecodeFeatureIndex parses a {"name": slot} document from r.
func DecodeFeatureIndex(model string, r io.Reader) (FeatureIndex, error) {
	var idx FeatureIndex
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		return nil, &ModelFormatError{Model: model, Reason: "decode feature index", Err: err}
	}
	return idx, nil
}

// Load decodes and validates a model from two readers.
func Load(model string, ensemble, featureIndex io.Reader) (*Model, error) {
	desc, err := DecodeDescription(model, ensemble)
	if err != nil {
		return nil, err
	}
	idx, err := DecodeFeatureIndex(model, featureIndex)
	if err != nil {
		return nil, err
	}
	return NewModel(model, desc, idx)
}

// LoadFiles is Load over two file paths.
func LoadFiles(model, ensemblePath, featureIndexPath string) (*Model, error) {
	ef, err := os.Open(ensemblePath)
	if err != nil {
		return nil, &ModelFormatError{Model: model, Reason: "open ensemble " + ensemblePath, Err: err}
	}
	defer ef.Close()

	xf, err := os.Open(featureIndexPath)
	if err != nil {
		return nil, &ModelFormatError{Model: model, Reason: "open feature index " + featureIndexPath, Err: err}
	}
	defer xf.Close()

	return Load(model, ef, xf)
}
