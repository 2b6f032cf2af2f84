package consts

const (
	MaxMessageSize = 32 * 1024 * 1024

	// MetadataKeyContextID carries the context ID of a WriteAudio stream.
	MetadataKeyContextID = "context-id"
)
