package pathsync

import "fmt"

// CopyError reports a failure to bring one entry from the source into the
// replica. The pass continues with the next entry.
type CopyError struct {
	RelPath     string
	SourcePath  string
	ReplicaPath string
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("failed to copy %s to %s: %v", e.SourcePath, e.ReplicaPath, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// RemovalError reports a failure to delete one replica entry. The pass
// continues with the next entry.
type RemovalError struct {
	RelPath     string
	ReplicaPath string
	Err         error
}

func (e *RemovalError) Error() string {
	return fmt.Sprintf("failed to remove %s: %v", e.ReplicaPath, e.Err)
}

func (e *RemovalError) Unwrap() error { return e.Err }
