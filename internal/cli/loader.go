package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/typewriter/internal/planfile"
)

// LoadError represents an error that occurred while loading a plan or a
// config file.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPlan reads and decodes a plan file. Unknown keys are rejected.
func LoadPlan(path string) (*planfile.PlanFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "plan file not found", Path: path}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error(), Path: path}
	}

	pf, err := planfile.Parse(data)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeParseFailed, Message: "plan file is empty", Path: path}
		}
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Path: path}
	}
	return pf, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeReadFailed    = "E002" // File read error
	ErrCodeParseFailed   = "E003" // YAML decode failed
	ErrCodeInvalidPlan   = "E004" // Plan does not build
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeInvalidConfig = "E006" // Config file rejected
	ErrCodeUnsupported   = "E007" // Backend cannot run the plan

	// Execution errors
	ErrCodeConnect     = "E101" // Backend unreachable
	ErrCodePoolTimeout = "E102" // No connection within the acquire timeout
	ErrCodeExecution   = "E103" // Statement or command failed
	ErrCodeDecode      = "E104" // Row could not be decoded
)
