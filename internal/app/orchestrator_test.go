package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/domain"
)

// plainFetcher satisfies domain.Fetcher with the default transport so
// crawls hit the httptest server directly.
type plainFetcher struct{}

func (plainFetcher) Get(ctx context.Context, url string) (*domain.Response, error) {
	return nil, nil
}
func (plainFetcher) GetWithHeaders(ctx context.Context, url string, headers map[string]string) (*domain.Response, error) {
	return nil, nil
}
func (plainFetcher) Transport() http.RoundTripper { return http.DefaultTransport }
func (plainFetcher) Close() error                 { return nil }

// fakeRemote simulates the knowledge service in memory
type fakeRemote struct {
	mu sync.Mutex

	files      map[string][]byte
	nextID     int
	uploaded   []string
	updated    []string
	deleted    []string
	collection domain.Collection
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		files:      map[string][]byte{},
		collection: domain.Collection{ID: "kb-1", Name: "Test Wiki"},
	}
}

func (f *fakeRemote) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("id-%d", f.nextID)
	f.files[id] = content
	f.uploaded = append(f.uploaded, filename)
	return id, nil
}

func (f *fakeRemote) UpdateFileContent(ctx context.Context, fileID string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[fileID]; !ok {
		return domain.ErrNotFound
	}
	f.files[fileID] = content
	f.updated = append(f.updated, fileID)
	return nil
}

func (f *fakeRemote) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, fileID)
	f.deleted = append(f.deleted, fileID)
	return nil
}

func (f *fakeRemote) FileExists(ctx context.Context, fileID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[fileID]
	return ok, nil
}

func (f *fakeRemote) WaitForProcessing(ctx context.Context, fileIDs []string) error { return nil }

func (f *fakeRemote) CreateCollection(ctx context.Context, name, description string) (*domain.Collection, error) {
	col := f.collection
	col.Name = name
	return &col, nil
}

func (f *fakeRemote) FindCollectionByName(ctx context.Context, name string) (*domain.Collection, error) {
	if f.collection.Name == name {
		col := f.collection
		return &col, nil
	}
	return nil, domain.ErrCollectionNotFound
}

func (f *fakeRemote) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return []domain.Collection{f.collection}, nil
}

func (f *fakeRemote) ListCollectionFiles(ctx context.Context, collectionID string) ([]domain.RemoteFile, error) {
	return nil, nil
}

func (f *fakeRemote) AddFilesToCollection(ctx context.Context, collectionID string, fileIDs []string) (*domain.BatchResult, error) {
	return &domain.BatchResult{Added: len(fileIDs)}, nil
}

func (f *fakeRemote) RemoveFileFromCollection(ctx context.Context, collectionID, fileID string) error {
	return nil
}

func (f *fakeRemote) Reindex(ctx context.Context, collectionID string) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()
	cfg.Cache.Enabled = false
	cfg.Scrape.RandomDelayMin = 0
	cfg.Scrape.RandomDelayMax = time.Millisecond
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	return cfg
}

func testApp(t *testing.T, cfg *config.Config, remote domain.KnowledgeClient) *App {
	t.Helper()
	a, err := New(Options{Config: cfg, Fetcher: plainFetcher{}, RemoteClient: remote})
	require.NoError(t, err)
	return a
}

func wikiHandler(content *string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><head><title>Home</title></head><body><div id="content">`+
				`<h1>Home</h1><p>Welcome.</p><a href="/wiki/Iron_Sword">sword</a></div></body></html>`)
		case "/wiki/Iron_Sword":
			fmt.Fprintf(w, `<html><head><title>Iron Sword</title></head><body><div id="content">`+
				`<h1>Iron Sword</h1><p>%s</p></div></body></html>`, *content)
		default:
			http.NotFound(w, r)
		}
	})
	return mux
}

func wikiSite(baseURL string) *config.SiteConfig {
	return &config.SiteConfig{
		Name:        "testwiki",
		DisplayName: "Test Wiki",
		BaseURL:     baseURL,
		Selector:    "#content",
		Cleaning:    "none",
		MaxDepth:    3,
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestApp_ScrapeUploadCycle(t *testing.T) {
	body := "A basic weapon."
	server := httptest.NewServer(wikiHandler(&body))
	defer server.Close()

	cfg := testConfig(t)
	remote := newFakeRemote()
	a := testApp(t, cfg, remote)
	site := wikiSite(server.URL)
	ctx := context.Background()

	res, err := a.Scrape(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Zero(t, res.Failed)
	assert.Len(t, res.Diff.Added, 2)
	assert.NotEmpty(t, res.Timestamp)

	scrapes, err := a.Store().ListScrapes(site.Name)
	require.NoError(t, err)
	assert.Len(t, scrapes, 1)

	meta, err := a.Snapshots().ReadMetadata(site.Name)
	require.NoError(t, err)
	assert.Len(t, meta.Files, 2)

	status, err := a.Upload(ctx, site, UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "kb-1", status.CollectionID)
	assert.Equal(t, 2, status.FilesUploaded)
	assert.Len(t, remote.uploaded, 2)

	// nothing changed, so a second upload pushes nothing
	again, err := a.Upload(ctx, site, UploadOptions{})
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Len(t, remote.uploaded, 2)
	assert.Empty(t, remote.updated)
}

func TestApp_ModifiedPageIsUpdatedRemotely(t *testing.T) {
	body := "A basic weapon."
	server := httptest.NewServer(wikiHandler(&body))
	defer server.Close()

	cfg := testConfig(t)
	remote := newFakeRemote()
	a := testApp(t, cfg, remote)
	site := wikiSite(server.URL)
	ctx := context.Background()

	_, err := a.Scrape(ctx, site)
	require.NoError(t, err)
	_, err = a.Upload(ctx, site, UploadOptions{})
	require.NoError(t, err)

	body = "A basic weapon, now reforged."
	time.Sleep(1100 * time.Millisecond) // scrape directories are named to the second

	res, err := a.Scrape(ctx, site)
	require.NoError(t, err)
	assert.Len(t, res.Diff.Modified, 1)
	assert.Len(t, res.Diff.Unchanged, 1)

	status, err := a.Upload(ctx, site, UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesUpdated)
	assert.Len(t, remote.updated, 1)
	assert.Len(t, remote.uploaded, 2)
}

func TestApp_ScrapeFailsWhenNoPagesSurvive(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	a := testApp(t, testConfig(t), newFakeRemote())
	_, err := a.Scrape(context.Background(), wikiSite(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pages")
}

func TestApp_RefreshSkipsUploadWithoutRemote(t *testing.T) {
	body := "A basic weapon."
	server := httptest.NewServer(wikiHandler(&body))
	defer server.Close()

	cfg := testConfig(t)
	a, err := New(Options{Config: cfg, Fetcher: plainFetcher{}})
	require.NoError(t, err)
	site := wikiSite(server.URL)

	require.NoError(t, a.Refresh(context.Background(), site))

	_, err = a.Snapshots().ReadUploadStatus(site.Name)
	assert.True(t, errors.Is(err, domain.ErrUploadStateMissing))
}

func TestApp_UploadWithoutRemoteConfigured(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(Options{Config: cfg, Fetcher: plainFetcher{}})
	require.NoError(t, err)

	_, err = a.Upload(context.Background(), wikiSite("https://example.com"), UploadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.base_url")
}
