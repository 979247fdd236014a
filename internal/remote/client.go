package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/fetcher"
	"github.com/sitesync/sitesync/internal/utils"
)

const apiPrefix = "/api/v1"

// Client talks to an OpenWebUI-compatible knowledge service. It implements
// domain.KnowledgeClient. All calls carry bearer auth and retry transient
// failures with exponential backoff.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	retrier     *fetcher.Retrier
	logger      *utils.Logger
	procTimeout time.Duration
	procPoll    time.Duration
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	Config config.RemoteConfig
	Logger *utils.Logger
}

// NewClient creates a Client from the remote configuration
func NewClient(opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}

	timeout := opts.Config.Timeout
	if timeout <= 0 {
		timeout = config.DefaultRemoteTimeout
	}
	procTimeout := opts.Config.ProcessingTimeout
	if procTimeout <= 0 {
		procTimeout = config.DefaultProcessingTimeout
	}
	procPoll := opts.Config.ProcessingPoll
	if procPoll <= 0 {
		procPoll = config.DefaultProcessingPoll
	}

	retrierOpts := fetcher.DefaultRetrierOptions()
	if opts.Config.MaxRetries > 0 {
		retrierOpts.MaxRetries = opts.Config.MaxRetries
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimSuffix(opts.Config.BaseURL, "/"),
		apiKey:      opts.Config.APIKey,
		retrier:     fetcher.NewRetrier(retrierOpts),
		logger:      logger.WithComponent("remote"),
		procTimeout: procTimeout,
		procPoll:    procPoll,
	}
}

// do performs a single HTTP attempt and returns status plus body. Transport
// failures come back as RetryableError so the retrier can act on them.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &domain.RetryableError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &domain.RetryableError{Err: err}
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	return c.do(ctx, method, path, body, "application/json")
}

func errorMessage(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// UploadFile uploads content as a new remote file and returns its id
func (c *Client) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", "text/markdown")
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	return fetcher.RetryWithValue(ctx, c.retrier, func() (string, error) {
		status, body, err := c.do(ctx, "POST", "/files/", buf.Bytes(), mw.FormDataContentType())
		if err != nil {
			return "", err
		}
		if status != http.StatusOK {
			return "", domain.NewRemoteError("upload", status, errorMessage(body))
		}

		var result struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return "", fmt.Errorf("failed to parse upload response: %w", err)
		}
		if result.ID == "" {
			return "", domain.NewRemoteError("upload", status, "response carries no file id")
		}
		c.logger.Debug().Str("file", filename).Str("id", result.ID).Msg("Uploaded file")
		return result.ID, nil
	})
}

// UpdateFileContent replaces the content of an existing remote file.
// Returns ErrNotFound when the file was deleted out-of-band so the caller
// can re-upload it as new.
func (c *Client) UpdateFileContent(ctx context.Context, fileID string, content []byte) error {
	payload := map[string]string{"content": string(content)}

	return c.retrier.Retry(ctx, func() error {
		status, body, err := c.doJSON(ctx, "POST", "/files/"+fileID+"/data/content/update", payload)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusOK:
			return nil
		case http.StatusNotFound:
			return fmt.Errorf("update %s: %w", fileID, domain.ErrNotFound)
		default:
			return domain.NewRemoteError("update", status, errorMessage(body))
		}
	})
}

// DeleteFile removes a remote file. A 404 counts as success, the file is
// already gone.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.retrier.Retry(ctx, func() error {
		status, body, err := c.do(ctx, "DELETE", "/files/"+fileID, nil, "")
		if err != nil {
			return err
		}
		if status == http.StatusOK || status == http.StatusNotFound {
			return nil
		}
		return domain.NewRemoteError("delete", status, errorMessage(body))
	})
}

// FileExists checks whether a remote file still exists. Unexpected statuses
// report the file as existing so callers never treat a flaky remote as a
// deletion.
func (c *Client) FileExists(ctx context.Context, fileID string) (bool, error) {
	status, _, err := c.do(ctx, "GET", "/files/"+fileID, nil, "")
	if err != nil {
		return true, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		c.logger.Warn().Str("id", fileID).Int("status", status).
			Msg("Unexpected status checking file")
		return true, nil
	}
}

// fileDetail is the service's file record
type fileDetail struct {
	ID       string `json:"id"`
	Hash     string `json:"hash"`
	Filename string `json:"filename"`
	Meta     struct {
		Name string `json:"name"`
	} `json:"meta"`
}

func (f *fileDetail) name() string {
	raw := f.Meta.Name
	if raw == "" {
		raw = f.Filename
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// FileDetails fetches a single file record including its content hash
func (c *Client) FileDetails(ctx context.Context, fileID string) (*domain.RemoteFile, error) {
	status, body, err := c.do(ctx, "GET", "/files/"+fileID, nil, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("file %s: %w", fileID, domain.ErrNotFound)
	}
	if status != http.StatusOK {
		return nil, domain.NewRemoteError("file details", status, errorMessage(body))
	}

	var detail fileDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to parse file details: %w", err)
	}
	return &domain.RemoteFile{ID: detail.ID, Name: detail.name(), Hash: detail.Hash}, nil
}

// WaitForProcessing polls until the given files finish remote processing or
// the ceiling passes. Files still pending at the ceiling are assumed ready
// with a warning; processing delays are never fatal.
func (c *Client) WaitForProcessing(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}

	pending := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		pending[id] = true
	}

	deadline := time.Now().Add(c.procTimeout)
	for len(pending) > 0 && time.Now().Before(deadline) {
		for id := range pending {
			status, body, err := c.do(ctx, "GET", "/files/"+id+"/process/status", nil, "")
			if err != nil || status != http.StatusOK {
				// no status available, assume the file is ready
				delete(pending, id)
				continue
			}

			var result struct {
				Status string `json:"status"`
				State  string `json:"state"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				delete(pending, id)
				continue
			}
			state := result.Status
			if state == "" {
				state = result.State
			}
			switch state {
			case "completed", "success", "done":
				delete(pending, id)
			case "failed", "error":
				c.logger.Warn().Str("id", id).Msg("File processing failed")
				delete(pending, id)
			}
		}

		if len(pending) > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.procPoll):
			}
		}
	}

	if len(pending) > 0 {
		c.logger.Warn().Int("count", len(pending)).
			Msg("Processing wait ceiling reached, files assumed ready")
	}
	return nil
}

// CreateCollection returns the collection with the given name, creating it
// when it does not exist yet
func (c *Client) CreateCollection(ctx context.Context, name, description string) (*domain.Collection, error) {
	existing, err := c.FindCollectionByName(ctx, name)
	if err == nil {
		c.logger.Info().Str("collection", name).Str("id", existing.ID).
			Msg("Using existing collection")
		return existing, nil
	}

	payload := map[string]string{"name": name, "description": description}

	return fetcher.RetryWithValue(ctx, c.retrier, func() (*domain.Collection, error) {
		status, body, err := c.doJSON(ctx, "POST", "/knowledge/create", payload)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, domain.NewRemoteError("create collection", status, errorMessage(body))
		}

		var col domain.Collection
		if err := json.Unmarshal(body, &col); err != nil {
			return nil, fmt.Errorf("failed to parse collection response: %w", err)
		}
		c.logger.Info().Str("collection", name).Str("id", col.ID).Msg("Created collection")
		return &col, nil
	})
}

// ListCollections lists all knowledge collections
func (c *Client) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return fetcher.RetryWithValue(ctx, c.retrier, func() ([]domain.Collection, error) {
		status, body, err := c.do(ctx, "GET", "/knowledge/", nil, "")
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, domain.NewRemoteError("list collections", status, errorMessage(body))
		}
		return parseCollectionList(body)
	})
}

// parseCollectionList accepts both a bare array and the wrapped
// {"data": [...]} / {"items": [...]} response shapes
func parseCollectionList(body []byte) ([]domain.Collection, error) {
	var list []domain.Collection
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Data  []domain.Collection `json:"data"`
		Items []domain.Collection `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse collection list: %w", err)
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return wrapped.Items, nil
}

// FindCollectionByName returns the collection with the given name, or
// ErrCollectionNotFound
func (c *Client) FindCollectionByName(ctx context.Context, name string) (*domain.Collection, error) {
	collections, err := c.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range collections {
		if collections[i].Name == name {
			return &collections[i], nil
		}
	}
	return nil, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
}

// ListCollectionFiles lists the files attached to a collection. Hashes are
// filled in from per-file detail lookups when the listing omits them.
func (c *Client) ListCollectionFiles(ctx context.Context, collectionID string) ([]domain.RemoteFile, error) {
	details, err := fetcher.RetryWithValue(ctx, c.retrier, func() ([]fileDetail, error) {
		status, body, err := c.do(ctx, "GET", "/knowledge/"+collectionID+"/files", nil, "")
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, domain.NewRemoteError("list files", status, errorMessage(body))
		}
		return parseFileList(body)
	})
	if err != nil {
		return nil, err
	}

	files := make([]domain.RemoteFile, 0, len(details))
	for i := range details {
		f := domain.RemoteFile{ID: details[i].ID, Name: details[i].name(), Hash: details[i].Hash}
		if f.Hash == "" && f.ID != "" {
			if detail, err := c.FileDetails(ctx, f.ID); err == nil {
				f.Hash = detail.Hash
				if f.Name == "" {
					f.Name = detail.Name
				}
			}
		}
		files = append(files, f)
	}
	return files, nil
}

func parseFileList(body []byte) ([]fileDetail, error) {
	var wrapped struct {
		Items []fileDetail `json:"items"`
		Files []fileDetail `json:"files"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Items != nil {
			return wrapped.Items, nil
		}
		if wrapped.Files != nil {
			return wrapped.Files, nil
		}
	}

	var list []fileDetail
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to parse file list: %w", err)
	}
	return list, nil
}

// AddFilesToCollection attaches uploaded files to a collection in one batch
// call, falling back to individual adds when the batch endpoint fails
func (c *Client) AddFilesToCollection(ctx context.Context, collectionID string, fileIDs []string) (*domain.BatchResult, error) {
	if len(fileIDs) == 0 {
		return &domain.BatchResult{}, nil
	}

	payload := make([]map[string]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		payload = append(payload, map[string]string{"file_id": id})
	}

	status, body, err := c.doJSON(ctx, "POST", "/knowledge/"+collectionID+"/files/batch/add", payload)
	if err == nil && status == http.StatusOK {
		c.logger.Info().Int("count", len(fileIDs)).Msg("Batch added files to collection")
		return &domain.BatchResult{Added: len(fileIDs)}, nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Batch add failed, adding files individually")
	} else {
		c.logger.Warn().Int("status", status).Str("error", errorMessage(body)).
			Msg("Batch add failed, adding files individually")
	}

	result := &domain.BatchResult{}
	for _, id := range fileIDs {
		if err := c.addFileToCollection(ctx, collectionID, id); err != nil {
			c.logger.Warn().Str("id", id).Err(err).Msg("Failed to add file to collection")
			result.Failed++
			continue
		}
		result.Added++
	}
	if result.Added == 0 && result.Failed > 0 {
		return result, domain.NewRemoteError("batch add", 0,
			fmt.Sprintf("all %d adds failed", result.Failed))
	}
	return result, nil
}

func (c *Client) addFileToCollection(ctx context.Context, collectionID, fileID string) error {
	payload := map[string]string{"file_id": fileID}

	return c.retrier.Retry(ctx, func() error {
		status, body, err := c.doJSON(ctx, "POST", "/knowledge/"+collectionID+"/file/add", payload)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return domain.NewRemoteError("add file", status, errorMessage(body))
		}
		return nil
	})
}

// RemoveFileFromCollection detaches a file from a collection. A 404 counts
// as success.
func (c *Client) RemoveFileFromCollection(ctx context.Context, collectionID, fileID string) error {
	payload := map[string]string{"file_id": fileID}

	return c.retrier.Retry(ctx, func() error {
		status, body, err := c.doJSON(ctx, "POST", "/knowledge/"+collectionID+"/file/remove", payload)
		if err != nil {
			return err
		}
		if status == http.StatusOK || status == http.StatusNotFound {
			return nil
		}
		return domain.NewRemoteError("remove file", status, errorMessage(body))
	})
}

// Reindex asks the service to rebuild a collection's search index
func (c *Client) Reindex(ctx context.Context, collectionID string) error {
	payload := map[string]string{"knowledge_id": collectionID}

	return c.retrier.Retry(ctx, func() error {
		status, body, err := c.doJSON(ctx, "POST", "/knowledge/reindex", payload)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return domain.NewRemoteError("reindex", status, errorMessage(body))
		}
		return nil
	})
}

// Ping verifies the service is reachable with the configured credentials
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.do(ctx, "GET", "/knowledge/", nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return domain.NewRemoteError("ping", status, errorMessage(body))
	}
	return nil
}
