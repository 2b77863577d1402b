//go:build !linux

package chip

import "codeberg.org/mutker/nasfanctl/internal/errors"

// OpenDevPort is only implemented on Linux.
func OpenDevPort() (Ports, error) {
	return nil, errors.New().Wrap(ErrPrivilege, errors.New().New(ErrUnsupported))
}
