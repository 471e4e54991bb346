package models

import "github.com/pkg/errors"

// Exec failure kinds. This is a closed set: every fallible step in the
// image-construction path resolves to one of these, and the syscall
// boundary collapses all of them to -1.
var (
	ErrFileNotFound     = errors.New("file not found")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidElf       = errors.New("invalid ELF image")
	ErrOutOfMemory      = errors.New("out of memory")
	ErrTooManyArgs      = errors.New("too many arguments")
	ErrArgTooLong       = errors.New("argument too long")
	ErrNoProcess        = errors.New("no such process")
	ErrPermissionDenied = errors.New("permission denied")
)
