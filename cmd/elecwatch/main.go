package main

import (
	"errors"
	"os"
)

// Exit codes.
const (
	exitOK     = 0
	exitConfig = 1
	exitSave   = 2
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: exitConfig, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitConfig
}

func main() {
	os.Exit(exitCode(rootCmd.Execute()))
}
