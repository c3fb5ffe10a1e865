package model

import "encoding/json"

// Checksum holds the base64 digests of an archive. It doubles as the
// upload integrity token and the artifact dedup key on the controller.
type Checksum struct {
	MD5    string `json:"md5"`
	SHA256 string `json:"sha256"`
}

type PresignedRequest struct {
	Method  string   `json:"method"`
	URL     string   `json:"url"`
	Headers []string `json:"headers"` // "Name:Value", in order
}

// ArtifactUpload is the controller's answer to an upload negotiation.
// ArtifactRequest is opaque and must be handed back untouched once the
// upload has succeeded.
type ArtifactUpload struct {
	UploadRequest   PresignedRequest `json:"upload_request"`
	ArtifactRequest json.RawMessage  `json:"artifact_request"`
}
