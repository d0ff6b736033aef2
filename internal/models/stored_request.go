package models

// StoredRequest is a prebuilt request path+query waiting for upload.
// Location updates, consent changes and device-id merges travel through
// this queue.
type StoredRequest struct {
	Request string `json:"request"`
	// IdMerge marks a server-side identity merge; the collector needs a
	// moment to settle the old identity before the merge is replayed.
	IdMerge bool `json:"idMerge"`
}
