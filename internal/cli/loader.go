package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/carbonspin/internal/compiler"
)

// LoadError represents an error that occurred while loading a configuration.
type LoadError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line, or 0 without a position.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// IsCommandError reports whether the configuration could not be read at
// all, as opposed to being read and found invalid.
func (e *LoadError) IsCommandError() bool {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles:
		return true
	}
	return false
}

// LoadConfig loads and compiles the CUE configuration in dir.
func LoadConfig(dir string) (*compiler.Config, *LoadError) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	value, err := compiler.BuildDir(dir)
	if err != nil {
		return nil, convertCompileError(err, ErrCodeLoadFailed)
	}
	cfg, err := compiler.Compile(value)
	if err != nil {
		return nil, convertCompileError(err, ErrCodeGeneric)
	}
	return cfg, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info. fallback is the code for errors without a field.
func convertCompileError(err error, fallback string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Field:   compileErr.Field,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: fallback, Message: err.Error()}
}

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Section errors
	ErrCodeSimulation = "E101"
	ErrCodePools      = "E102"
	ErrCodeTables     = "E103"
	ErrCodeListener   = "E104"
	ErrCodeApplier    = "E105"
	ErrCodeSpinup     = "E106"
	ErrCodeProcesses  = "E107"
	ErrCodeUnits      = "E108"
)

// MapFieldToErrorCode maps a compiler error field to an error code by its
// top-level section.
func MapFieldToErrorCode(field string) string {
	section, _, _ := strings.Cut(field, ".")
	if i := strings.IndexByte(section, '['); i >= 0 {
		section = section[:i]
	}
	switch section {
	case "cue":
		return ErrCodeBuildFailed
	case "simulation":
		return ErrCodeSimulation
	case "pools":
		return ErrCodePools
	case "tables":
		return ErrCodeTables
	case "listener", "disturbance_conditions":
		return ErrCodeListener
	case "applier":
		return ErrCodeApplier
	case "spinup":
		return ErrCodeSpinup
	case "processes":
		return ErrCodeProcesses
	case "units":
		return ErrCodeUnits
	default:
		return ErrCodeGeneric
	}
}
