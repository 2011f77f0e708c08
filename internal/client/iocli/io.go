// Package iocli abstracts terminal input and output for the CLI.
package iocli

// IO is the terminal seen by CLI commands
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}
