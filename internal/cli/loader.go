package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/seamlang/seam/internal/compiler"
	"github.com/seamlang/seam/internal/ir"
)

// LoadError represents an error that occurred during module loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadModule loads and compiles a single CUE module file.
// Compile failures come back as *LoadError with a stable error code.
func LoadModule(path string) (*ir.Program, *LoadError) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("module file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing module file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	prog, err := compiler.LoadFile(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return prog, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeCompileFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeCompileFailed = "E002" // CUE parse/compile failed
	ErrCodeNotFound      = "E003" // Path not found
	ErrCodeWriteFailed   = "E004" // File write error
	ErrCodeStoreFailed   = "E005" // Database open/query error
	ErrCodeRunNotFound   = "E006" // Run token not stored

	// Module compilation errors
	ErrCodeBadModule  = "E101" // Malformed module header
	ErrCodeBadFunc    = "E102" // Malformed function declaration
	ErrCodeBadProp    = "E103" // Malformed prop declaration
	ErrCodeBadExpr    = "E104" // Malformed expression
	ErrCodeBadLiteral = "E105" // Invalid literal (float, unsupported kind)
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "module":
		return ErrCodeBadModule
	case strings.HasPrefix(field, "func"):
		return ErrCodeBadFunc
	case strings.HasPrefix(field, "prop"):
		return ErrCodeBadProp
	case field == "lit.value":
		return ErrCodeBadLiteral
	case strings.HasPrefix(field, "expr"):
		return ErrCodeBadExpr
	case field == "cue":
		return ErrCodeCompileFailed
	default:
		return ErrCodeGeneric
	}
}
