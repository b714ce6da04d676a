package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"lauschr/internal/apperr"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error (%s): %v\n", apperr.Kind(err), err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps error kinds to distinct process exit codes so scripts can
// tell bad input from storage trouble.
func exitCode(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrUpload):
		return 2
	case errors.Is(err, apperr.ErrPermissionDenied):
		return 3
	case errors.Is(err, apperr.ErrNotFound):
		return 4
	case errors.Is(err, apperr.ErrStorageCorruption), errors.Is(err, apperr.ErrStorageUnavailable):
		return 5
	default:
		return 1
	}
}
