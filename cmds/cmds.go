// Package cmds has the command abstraction the CLI commands build on.
// Commands validate themselves before they execute so that the CLI can do a
// dry run with plain validation.
package cmds

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lainio/err2/try"
)

var ErrInvalid = errors.New("invalid command, check arguments")

type Result interface {
	JSON() ([]byte, error)
}

type Command interface {
	Validate() error
	Exec(w io.Writer) (r Result, err error)
}

// ValidateTime checks a wall clock argument in HH:MM or HH:MM:SS format.
func ValidateTime(t string) (err error) {
	_, err = ParseTime(t)
	return err
}

func ParseTime(t string) (parsed time.Time, err error) {
	parsed, err = time.Parse("15:04:05", t)
	if err != nil {
		parsed, err = time.Parse("15:04", t)
	}
	if err != nil {
		return parsed, fmt.Errorf("time must be in HH:MM[:SS] format: %w", err)
	}
	return parsed, nil
}

// Fprintln is fmt.Fprintln but it allows writer to be nil. Note! it throws an
// error.
func Fprintln(w io.Writer, a ...interface{}) {
	if w != nil {
		_, err := fmt.Fprintln(w, a...)
		try.To(err)
	}
}
