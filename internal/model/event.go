package model

// EventKind tags an UploadEvent. Each pipeline stage is named after the
// event it produces.
type EventKind string

const (
	EventPostCreated      EventKind = "post_created"
	EventUploadURLIssued  EventKind = "upload_url_issued"
	EventBytesTransferred EventKind = "bytes_transferred"
	EventUploadFinalized  EventKind = "upload_finalized"
	EventContentAttached  EventKind = "content_attached"
	EventPublished        EventKind = "published"
)

// UploadEvent is the result of one pipeline step. Only the fields relevant
// to Kind are set.
type UploadEvent struct {
	Kind           EventKind
	PostID         string
	DestinationURL string
	MediaID        string
	Fraction       float64
}

func PostCreated(postID string) UploadEvent {
	return UploadEvent{Kind: EventPostCreated, PostID: postID}
}

// UploadURLIssued carries the signed destination. mediaID is empty for
// trailers.
func UploadURLIssued(destinationURL, mediaID string) UploadEvent {
	return UploadEvent{Kind: EventUploadURLIssued, DestinationURL: destinationURL, MediaID: mediaID}
}

func BytesTransferred(fraction float64) UploadEvent {
	return UploadEvent{Kind: EventBytesTransferred, Fraction: fraction}
}

func UploadFinalized() UploadEvent { return UploadEvent{Kind: EventUploadFinalized} }

func ContentAttached() UploadEvent { return UploadEvent{Kind: EventContentAttached} }

func Published() UploadEvent { return UploadEvent{Kind: EventPublished} }
