package sync

import (
	"encoding/json"
	"fmt"
)

// anchorVersion guards against decoding a payload written by an
// incompatible future format.
const anchorVersion = 1

// anchorPayload is the serialized form of a snapshot: the scope it was
// taken against plus the identifier-to-tag map. Full entry metadata is
// deliberately not persisted; the next listing reproduces it.
type anchorPayload struct {
	Version int                   `json:"v"`
	Scope   string                `json:"scope"`
	Entries map[string]VersionTag `json:"entries"`
}

// EncodeAnchor serializes a snapshot into opaque anchor bytes.
func EncodeAnchor(snap *Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("cannot encode nil snapshot")
	}
	return json.Marshal(anchorPayload{
		Version: anchorVersion,
		Scope:   snap.Scope,
		Entries: snap.Entries,
	})
}

// DecodeAnchor deserializes anchor bytes back into a snapshot. It fails
// closed: empty bytes, malformed payloads, version mismatches, and
// anchors taken against a different scope all decode to nil, meaning "no
// previous state". Treating corruption as first observation costs an
// added-only change set; treating it as valid-but-wrong state would emit
// spurious removals for a whole tree.
func DecodeAnchor(data []byte, expectedScope string) *Snapshot {
	if len(data) == 0 {
		return nil
	}

	var payload anchorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}
	if payload.Version != anchorVersion {
		return nil
	}
	if payload.Scope != NormalizePath(expectedScope) {
		return nil
	}

	entries := payload.Entries
	if entries == nil {
		entries = make(map[string]VersionTag)
	}
	return &Snapshot{
		Scope:   payload.Scope,
		Entries: entries,
	}
}
