package schema

////////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	SchemaName = "filezen"

	// DefaultApiUrl is the hosted FileZen API endpoint
	DefaultApiUrl = "https://api.filezen.dev"

	// Environment variables consulted when no explicit configuration is given
	EnvApiKey = "FILEZEN_API_KEY"
	EnvApiUrl = "FILEZEN_API_URL"

	// HTTP headers
	ApiKeyHeader         = "ApiKey"
	AuthorizationHeader  = "Authorization"
	ProjectIdHeader      = "X-Project-Id"
	FolderIdHeader       = "X-Folder-Id"
	ChunkSessionIdHeader = "Chunk-Session-Id"
	ChunkSizeHeader      = "Chunk-Size"
	ChunkIndexHeader     = "Chunk-Index"

	// Signed URL query parameters
	SignatureParam = "signature"
	AccessKeyParam = "accessKey"
	ExpiresParam   = "expires"
)

const (
	// MultipartThreshold is the payload size above which uploads are chunked
	MultipartThreshold = 10 * 1024 * 1024

	// ChunkSize is the size of each chunk in a multipart upload
	ChunkSize = 10 * 1024 * 1024

	// MaxPayloadSize is the default bound on a resolved payload (100 MiB)
	MaxPayloadSize = 100 * 1024 * 1024

	// DefaultExpiresIn is the default lifetime of a signed URL, in seconds
	DefaultExpiresIn = 3600

	// DefaultListLimit is the page size used when listing files
	DefaultListLimit = 20

	// MaxListLimit is the largest page size a list request may ask for
	MaxListLimit = 1000
)

const (
	// Blob attribute keys. S3 normalizes metadata keys to lowercase.
	AttrName      = "name"
	AttrProjectId = "project-id"
	AttrParentId  = "parent-id"
	AttrMetadata  = "metadata"
	AttrCreatedAt = "created-at"
)
