package chunk

import "fmt"

// Status represents the lifecycle state of a chunk in the registry.
type Status string

const (
	Downloading Status = "downloading" // transfer in flight
	Ready       Status = "ready"       // payload on disk, servable
	Deleting    Status = "deleting"    // removal in flight
	Deleted     Status = "deleted"     // terminal; equivalent to absence
)

// ParseStatus parses a persisted status name. Unknown names are an error, not
// a fallback: a snapshot row with a status this build does not recognise is
// treated as corruption.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case Downloading, Ready, Deleting, Deleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}
