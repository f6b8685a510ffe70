package isp

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Stages wrap one of these with detail; test with errors.Is.
var (
	ErrInvalidPattern       = errors.New("invalid CFA pattern")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrDegenerateStatistics = errors.New("degenerate statistics")
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrRangeMismatch        = errors.New("range mismatch")
	ErrDecodeFailure        = errors.New("decode failure")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidPattern, "InvalidPattern"},
	{ErrInvalidConfiguration, "InvalidConfiguration"},
	{ErrDegenerateStatistics, "DegenerateStatistics"},
	{ErrShapeMismatch, "ShapeMismatch"},
	{ErrRangeMismatch, "RangeMismatch"},
	{ErrDecodeFailure, "DecodeFailure"},
}

// Kind returns the name of the error kind carried by err, or "Unknown".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}

// Stage identifies a pipeline stage.
type Stage string

const (
	StageMasks     Stage = "masks"
	StageDemosaic  Stage = "demosaic"
	StageWhiteBal  Stage = "white-balance"
	StageColorCorr Stage = "color-correction"
	StageRescale   Stage = "rescale"
	StageGamma     Stage = "gamma"
	StageDump      Stage = "dump"
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
