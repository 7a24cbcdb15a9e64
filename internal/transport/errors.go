package transport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound signals that a channel or message no longer exists. Publish
// paths recover by recreating the message.
var ErrNotFound = errors.New("channel or message not found")

// PermissionError reports a missing capability on the transport side.
type PermissionError struct {
	ChannelID string
	Missing   []Capability
}

func (e *PermissionError) Error() string {
	if len(e.Missing) == 0 {
		return "missing permissions on channel " + e.ChannelID
	}
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("missing permissions on channel %s: %s", e.ChannelID, strings.Join(names, ", "))
}

// IsPermission reports whether err is a permission failure.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
