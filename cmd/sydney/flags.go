package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// flagSource is the part of the flag set the commands read.
type flagSource interface {
	GetBool(name string) (bool, error)
	GetString(name string) (string, error)
	GetInt(name string) (int, error)
}

// flagReader reads several flags and keeps the first lookup error, so a
// command can check once after reading everything it needs.
type flagReader struct {
	flags flagSource
	err   error
}

func readFlags(cmd *cobra.Command) *flagReader {
	return &flagReader{flags: cmd.Flags()}
}

func (r *flagReader) Bool(name string) bool {
	v, err := r.flags.GetBool(name)
	r.fail(name, err)
	return v
}

func (r *flagReader) String(name string) string {
	v, err := r.flags.GetString(name)
	r.fail(name, err)
	return v
}

func (r *flagReader) Int(name string) int {
	v, err := r.flags.GetInt(name)
	r.fail(name, err)
	return v
}

// Err returns the first lookup error.
func (r *flagReader) Err() error {
	return r.err
}

func (r *flagReader) fail(name string, err error) {
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("failed to get %s flag: %w", name, err)
	}
}
