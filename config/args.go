package config

import (
	"fmt"

	"github.com/google/shlex"
)

// splitArgs splits a command fragment into arguments without invoking a shell.
func splitArgs(s string) ([]string, error) {
	args, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("invalid FF_EXTRA_ARGS syntax: %w", err)
	}
	return args, nil
}
