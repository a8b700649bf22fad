package tracker

import (
	"errors"

	"github.com/runtrace/runtrace/internal/session"
)

// Archivers saves a run to each archiver in order. Every archiver is tried;
// the failures are joined.
type Archivers []Archiver

func (as Archivers) Save(snap session.Snapshot) error {
	var errs []error
	for _, a := range as {
		if a == nil {
			continue
		}
		if err := a.Save(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
