package blob

import "time"

// Blob maps an opaque content identifier to a retrieval URL. A row existing
// here is the authoritative signal that the object-store upload succeeded.
type Blob struct {
	ID        string
	URL       string
	CreatedAt time.Time
}
