// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrInvalidConfig marks a configuration value that violates a constraint.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidWeight marks a text/citation weight pair outside [0,1] or not summing to 1.
	ErrInvalidWeight = errors.New("invalid weight pair")

	// ErrInvalidRecord marks a malformed corpus record.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyCorpus is returned when no document survives loading.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrFeatureExtraction is returned when the vocabulary collapses under
	// the document-frequency filters.
	ErrFeatureExtraction = errors.New("feature extraction failed")

	// ErrDegenerateClustering is returned when a labeling cannot be scored
	// (fewer than two clusters, or every point its own cluster).
	ErrDegenerateClustering = errors.New("degenerate clustering")
)

// ConfigError names the configuration field whose constraint failed.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Err, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(field, reason string, sentinel error) error {
	return &ConfigError{Field: field, Reason: reason, Err: sentinel}
}

// Pipeline stages, used in StageError and Warning.
const (
	StageConfig   = "config"
	StageCorpus   = "corpus"
	StageText     = "text"
	StageCoupling = "coupling"
	StageFusion   = "fusion"
	StageL1       = "cluster-l1"
	StageL2       = "cluster-l2"
	StageL3       = "cluster-l3"
	StageValidate = "validate"
	StageExport   = "export"
)

// StageError reports which stage failed and which precondition it checked.
type StageError struct {
	Stage        string
	Precondition string
	Err          error
}

func (e *StageError) Error() string {
	if e.Precondition == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Precondition, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with its stage and precondition.
func NewStageError(stage, precondition string, err error) error {
	return &StageError{Stage: stage, Precondition: precondition, Err: err}
}

// Warning is a non-fatal condition collected into the run summary.
type Warning struct {
	Stage   string `json:"stage" yaml:"stage"`
	NodeID  string `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	Message string `json:"message" yaml:"message"`
}
