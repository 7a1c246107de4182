package pathsync

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// Detection selects how a file present on both sides is judged modified.
// Folders are always compared by modification time.
type Detection int

const (
	// DetectModTime treats a file as modified when the source copy is strictly newer.
	DetectModTime Detection = iota
	// DetectContent treats a file as modified when size or SHA-256 digest differ.
	DetectContent
)

var detectionToString = map[Detection]string{DetectModTime: "mtime", DetectContent: "content"}
var stringToDetection = map[string]Detection{}

func init() {
	stringToDetection = util.InvertMap(detectionToString)
}

// String returns the string representation of a Detection.
func (d Detection) String() string {
	if str, ok := detectionToString[d]; ok {
		return str
	}
	return fmt.Sprintf("unknown_detection(%d)", d)
}

// ParseDetection parses a string and returns the corresponding Detection.
func ParseDetection(s string) (Detection, error) {
	if d, ok := stringToDetection[s]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("invalid detection: %q. Must be 'mtime' or 'content'", s)
}

// MarshalJSON implements the json.Marshaler interface for Detection.
func (d Detection) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Detection.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("Detection should be a string, got %s", data)
	}

	parsed, err := ParseDetection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// fileChanged reports whether the replica copy of a file must be replaced.
func (d Detection) fileChanged(fs afero.Fs, srcAbs, repAbs string) (bool, error) {
	srcInfo, err := fs.Stat(srcAbs)
	if err != nil {
		return false, err
	}
	repInfo, err := fs.Stat(repAbs)
	if err != nil {
		return false, err
	}

	if d != DetectContent {
		// Equal times are not a modification.
		return srcInfo.ModTime().After(repInfo.ModTime()), nil
	}

	if srcInfo.Size() != repInfo.Size() {
		return true, nil
	}
	srcSum, err := fileDigest(fs, srcAbs)
	if err != nil {
		return false, err
	}
	repSum, err := fileDigest(fs, repAbs)
	if err != nil {
		return false, err
	}
	return !bytes.Equal(srcSum, repSum), nil
}

func fileDigest(fs afero.Fs, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bufPtr := ioBufferPool.Get()
	defer ioBufferPool.Put(bufPtr)

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, *bufPtr); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return h.Sum(nil), nil
}
