package pathsync

import (
	"encoding/json"
	"fmt"

	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// EntityKind tells whether an action touched a file or a folder.
type EntityKind int

const (
	EntityFile EntityKind = iota
	EntityFolder
)

var entityToString = map[EntityKind]string{EntityFile: "file", EntityFolder: "folder"}
var stringToEntity = map[string]EntityKind{}

// Reason tells why an entry was copied to the replica.
type Reason int

const (
	// ReasonCreated marks an entry that did not exist in the replica.
	ReasonCreated Reason = iota
	// ReasonModified marks an entry whose source side was newer (or differed).
	ReasonModified
)

var reasonToString = map[Reason]string{ReasonCreated: "created", ReasonModified: "modified"}
var stringToReason = map[string]Reason{}

func init() {
	stringToEntity = util.InvertMap(entityToString)
	stringToReason = util.InvertMap(reasonToString)
}

// String returns the string representation of an EntityKind.
func (k EntityKind) String() string {
	if str, ok := entityToString[k]; ok {
		return str
	}
	return fmt.Sprintf("unknown_entity(%d)", k)
}

// ParseEntityKind parses a string and returns the corresponding EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	if k, ok := stringToEntity[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("invalid entity kind: %q. Must be 'file' or 'folder'", s)
}

// MarshalJSON implements the json.Marshaler interface for EntityKind.
func (k EntityKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// String returns the string representation of a Reason.
func (r Reason) String() string {
	if str, ok := reasonToString[r]; ok {
		return str
	}
	return fmt.Sprintf("unknown_reason(%d)", r)
}

// ParseReason parses a string and returns the corresponding Reason.
func ParseReason(s string) (Reason, error) {
	if r, ok := stringToReason[s]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("invalid reason: %q. Must be 'created' or 'modified'", s)
}

// MarshalJSON implements the json.Marshaler interface for Reason.
func (r Reason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// MethodRemoved is the method name reported for removals.
const MethodRemoved = "removed"

// ActionRecord is one filesystem change applied to the replica during a pass.
// Its only implementations are Copied and Removed.
type ActionRecord interface {
	// Kind returns whether a file or a folder was affected.
	Kind() EntityKind
	// Path returns the root-relative, forward-slash path of the entry.
	Path() string
	// Method returns "created", "modified" or "removed".
	Method() string

	isActionRecord()
}

// Copied records an entry written to the replica from the source.
type Copied struct {
	Entity      EntityKind `json:"entity"`
	RelPath     string     `json:"path"`
	SourcePath  string     `json:"source"`
	ReplicaPath string     `json:"replica"`
	Reason      Reason     `json:"reason"`
}

func (c Copied) Kind() EntityKind { return c.Entity }
func (c Copied) Path() string     { return c.RelPath }
func (c Copied) Method() string   { return c.Reason.String() }
func (Copied) isActionRecord()    {}

// Removed records an entry deleted from the replica. A removed folder is
// reported once, without its contents.
type Removed struct {
	Entity      EntityKind `json:"entity"`
	RelPath     string     `json:"path"`
	ReplicaPath string     `json:"replica"`
}

func (r Removed) Kind() EntityKind { return r.Entity }
func (r Removed) Path() string     { return r.RelPath }
func (r Removed) Method() string   { return MethodRemoved }
func (Removed) isActionRecord()    {}

// Statically assert that our types implement the interface.
var _ ActionRecord = Copied{}
var _ ActionRecord = Removed{}
