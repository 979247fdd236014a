package domain

import (
	"context"
	"net/http"
	"time"
)

// Fetcher defines the interface for HTTP fetching with stealth capabilities
type Fetcher interface {
	// Get fetches content from a URL
	Get(ctx context.Context, url string) (*Response, error)
	// GetWithHeaders fetches content with custom headers
	GetWithHeaders(ctx context.Context, url string, headers map[string]string) (*Response, error)
	// Transport returns an http.RoundTripper for integration with other
	// HTTP clients (e.g., colly)
	Transport() http.RoundTripper
	// Close releases resources
	Close() error
}

// Response represents an HTTP response
type Response struct {
	StatusCode  int
	Body        []byte
	Headers     http.Header
	ContentType string
	URL         string
	FromCache   bool
}

// Cache defines the interface for content caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Has checks if a key exists in cache
	Has(ctx context.Context, key string) bool
	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error
	// Close releases cache resources
	Close() error
}

// Converter defines the interface for HTML to Markdown conversion
type Converter interface {
	// Convert transforms HTML content to a Document
	Convert(ctx context.Context, html string, sourceURL string) (*Document, error)
}

// Cleaner normalizes converted markdown before it is stored. Implementations
// are site-engine specific (MediaWiki, Fandom) and compose a base pass with
// engine extras.
type Cleaner interface {
	// Name returns the cleaning profile name
	Name() string
	// Clean returns the cleaned markdown
	Clean(content string) string
}

// KnowledgeClient is the remote knowledge service surface used by the
// uploader and the reconciler. Implemented by remote.Client; tests supply
// fakes.
type KnowledgeClient interface {
	// UploadFile uploads content as a new remote file and returns its id
	UploadFile(ctx context.Context, filename string, content []byte) (string, error)
	// UpdateFileContent replaces the content of an existing remote file.
	// Returns ErrNotFound if the file no longer exists remotely.
	UpdateFileContent(ctx context.Context, fileID string, content []byte) error
	// DeleteFile removes a remote file. Deleting an already absent file
	// succeeds.
	DeleteFile(ctx context.Context, fileID string) error
	// FileExists checks whether a remote file still exists
	FileExists(ctx context.Context, fileID string) (bool, error)
	// WaitForProcessing blocks until the given files finish remote
	// processing or the deadline passes
	WaitForProcessing(ctx context.Context, fileIDs []string) error

	// CreateCollection creates a knowledge collection
	CreateCollection(ctx context.Context, name, description string) (*Collection, error)
	// FindCollectionByName returns the collection with the given name,
	// or ErrCollectionNotFound
	FindCollectionByName(ctx context.Context, name string) (*Collection, error)
	// ListCollections lists all knowledge collections
	ListCollections(ctx context.Context) ([]Collection, error)
	// ListCollectionFiles lists the files attached to a collection
	ListCollectionFiles(ctx context.Context, collectionID string) ([]RemoteFile, error)
	// AddFilesToCollection attaches uploaded files to a collection
	AddFilesToCollection(ctx context.Context, collectionID string, fileIDs []string) (*BatchResult, error)
	// RemoveFileFromCollection detaches a file from a collection. Removing
	// an already absent file succeeds.
	RemoveFileFromCollection(ctx context.Context, collectionID, fileID string) error
	// Reindex asks the service to rebuild the collection's search index
	Reindex(ctx context.Context, collectionID string) error
}
