package remote_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/remote"
	"github.com/sitesync/sitesync/internal/snapshot"
	"github.com/sitesync/sitesync/internal/store"
)

const site = "mywiki"

// fakeClient records calls and simulates a small remote file store
type fakeClient struct {
	mu sync.Mutex

	files       map[string][]byte // id -> content
	nextID      int
	uploaded    map[string]string // filename -> id
	updated     []string
	deleted     []string
	detached    []string
	added       []string
	reindexed   bool
	collection  domain.Collection
	listedFiles []domain.RemoteFile
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		files:      map[string][]byte{},
		uploaded:   map[string]string{},
		collection: domain.Collection{ID: "kb-1", Name: "My Wiki"},
	}
}

func (f *fakeClient) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("id-%d", f.nextID)
	f.files[id] = content
	f.uploaded[filename] = id
	return id, nil
}

func (f *fakeClient) UpdateFileContent(ctx context.Context, fileID string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[fileID]; !ok {
		return domain.ErrNotFound
	}
	f.files[fileID] = content
	f.updated = append(f.updated, fileID)
	return nil
}

func (f *fakeClient) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, fileID)
	f.deleted = append(f.deleted, fileID)
	return nil
}

func (f *fakeClient) FileExists(ctx context.Context, fileID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[fileID]
	return ok, nil
}

func (f *fakeClient) WaitForProcessing(ctx context.Context, fileIDs []string) error {
	return nil
}

func (f *fakeClient) CreateCollection(ctx context.Context, name, description string) (*domain.Collection, error) {
	col := f.collection
	col.Name = name
	return &col, nil
}

func (f *fakeClient) FindCollectionByName(ctx context.Context, name string) (*domain.Collection, error) {
	if f.collection.Name == name {
		col := f.collection
		return &col, nil
	}
	return nil, domain.ErrCollectionNotFound
}

func (f *fakeClient) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return []domain.Collection{f.collection}, nil
}

func (f *fakeClient) ListCollectionFiles(ctx context.Context, collectionID string) ([]domain.RemoteFile, error) {
	return f.listedFiles, nil
}

func (f *fakeClient) AddFilesToCollection(ctx context.Context, collectionID string, fileIDs []string) (*domain.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, fileIDs...)
	return &domain.BatchResult{Added: len(fileIDs)}, nil
}

func (f *fakeClient) RemoveFileFromCollection(ctx context.Context, collectionID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = append(f.detached, fileID)
	return nil
}

func (f *fakeClient) Reindex(ctx context.Context, collectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reindexed = true
	return nil
}

var _ domain.KnowledgeClient = (*fakeClient)(nil)

func setupSnapshot(t *testing.T, pages map[string]string) *snapshot.Manager {
	t.Helper()
	s := store.New(store.StoreOptions{Root: t.TempDir()})
	m := snapshot.NewManager(snapshot.ManagerOptions{Store: s})

	ts := "2026-02-01_08-00-00"
	w, err := s.NewScrape(domain.SiteInfo{Name: site, BaseURL: "https://wiki.example.com"}, ts, "crawl")
	require.NoError(t, err)
	for url, body := range pages {
		_, err := w.Add(context.Background(), &domain.Document{URL: url, Markdown: body})
		require.NoError(t, err)
	}
	_, err = w.Finalize()
	require.NoError(t, err)
	require.NoError(t, m.Rebuild(site, ts))
	return m
}

func newUploader(fc *fakeClient, m *snapshot.Manager) *remote.Uploader {
	return remote.NewUploader(remote.UploaderOptions{
		Client:    fc,
		Snapshots: m,
		Config:    config.RemoteConfig{BatchSize: 2, ReindexThreshold: 10},
	})
}

func TestRun_FullUpload(t *testing.T) {
	m := setupSnapshot(t, map[string]string{
		"https://wiki.example.com/a": "a",
		"https://wiki.example.com/b": "b",
		"https://wiki.example.com/c": "c",
	})
	fc := newFakeClient()
	u := newUploader(fc, m)

	plan, err := m.PlanUpload(site, false)
	require.NoError(t, err)

	result, err := u.Run(context.Background(), site, plan, remote.RunOptions{CollectionName: "My Wiki"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilesUploaded)
	assert.Zero(t, result.FilesUpdated)
	assert.Len(t, result.FileIDMap, 3)
	assert.Len(t, fc.added, 3)
	assert.Equal(t, "kb-1", result.CollectionID)
	assert.Equal(t, site+"_", result.FolderPrefix)

	// remote filenames carry the site folder prefix
	assert.Contains(t, fc.uploaded, "mywiki_a.md")
}

func TestRun_IncrementalUpdatesInPlace(t *testing.T) {
	m := setupSnapshot(t, map[string]string{
		"https://wiki.example.com/changed": "new version",
		"https://wiki.example.com/fresh":   "hello",
	})
	fc := newFakeClient()
	fc.files["id-old"] = []byte("old version")
	u := newUploader(fc, m)

	meta, err := m.ReadMetadata(site)
	require.NoError(t, err)
	plan := &domain.UploadPlan{
		Upload:          meta.Files,
		Delete:          []string{"https://wiki.example.com/gone"},
		PreviousFileMap: map[string]string{"https://wiki.example.com/changed": "id-old", "https://wiki.example.com/gone": "id-gone"},
		CollectionID:    "kb-1",
	}

	result, err := u.Run(context.Background(), site, plan, remote.RunOptions{
		CollectionID:   "kb-1",
		CollectionName: "My Wiki",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesUploaded)
	assert.Equal(t, 1, result.FilesUpdated)
	assert.Equal(t, 1, result.FilesDeleted)
	assert.Equal(t, []string{"id-old"}, fc.updated)
	assert.Contains(t, fc.detached, "id-gone")
	assert.Contains(t, fc.deleted, "id-gone")
	assert.Equal(t, "id-old", result.FileIDMap["https://wiki.example.com/changed"])

	// only files this run touched appear in the id map
	assert.Len(t, result.FileIDMap, 2)
}

func TestRun_KeepRemoteDetachesOnly(t *testing.T) {
	m := setupSnapshot(t, map[string]string{"https://wiki.example.com/a": "a"})
	fc := newFakeClient()
	fc.files["id-gone"] = []byte("x")
	u := newUploader(fc, m)

	plan := &domain.UploadPlan{
		Delete:          []string{"https://wiki.example.com/gone"},
		PreviousFileMap: map[string]string{"https://wiki.example.com/gone": "id-gone"},
	}

	result, err := u.Run(context.Background(), site, plan, remote.RunOptions{
		CollectionID: "kb-1", KeepRemote: true,
	})
	require.NoError(t, err)

	assert.Zero(t, result.FilesDeleted)
	assert.Equal(t, []string{"id-gone"}, fc.detached)
	assert.Empty(t, fc.deleted)
	_, stillThere := fc.files["id-gone"]
	assert.True(t, stillThere)
}

func TestRun_ExternallyDeletedFileReuploadedAsNew(t *testing.T) {
	m := setupSnapshot(t, map[string]string{"https://wiki.example.com/page": "content"})
	fc := newFakeClient() // id-lost not present remotely
	u := newUploader(fc, m)

	meta, err := m.ReadMetadata(site)
	require.NoError(t, err)
	plan := &domain.UploadPlan{
		Upload:          meta.Files,
		PreviousFileMap: map[string]string{"https://wiki.example.com/page": "id-lost"},
	}

	result, err := u.Run(context.Background(), site, plan, remote.RunOptions{CollectionID: "kb-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesUploaded)
	assert.Equal(t, 1, result.FilesReuploaded)
	assert.Zero(t, result.FilesUpdated)
	assert.NotEqual(t, "id-lost", result.FileIDMap["https://wiki.example.com/page"])
}

func TestRun_ReindexAfterLargeChangeSet(t *testing.T) {
	pages := map[string]string{}
	for i := 0; i < 12; i++ {
		pages[fmt.Sprintf("https://wiki.example.com/p%02d", i)] = fmt.Sprintf("page %d", i)
	}
	m := setupSnapshot(t, pages)
	fc := newFakeClient()
	u := newUploader(fc, m)

	plan, err := m.PlanUpload(site, false)
	require.NoError(t, err)

	_, err = u.Run(context.Background(), site, plan, remote.RunOptions{CollectionID: "kb-1"})
	require.NoError(t, err)
	assert.True(t, fc.reindexed)
}

func TestRun_CleanupUntracked(t *testing.T) {
	m := setupSnapshot(t, map[string]string{"https://wiki.example.com/a": "a"})
	fc := newFakeClient()
	fc.listedFiles = []domain.RemoteFile{
		{ID: "id-stale", Name: "mywiki_old-page.md", Hash: "x"},
		{ID: "id-other", Name: "otherwiki_page.md", Hash: "y"},
	}
	u := newUploader(fc, m)

	plan, err := m.PlanUpload(site, false)
	require.NoError(t, err)

	_, err = u.Run(context.Background(), site, plan, remote.RunOptions{
		CollectionID:     "kb-1",
		CleanupUntracked: true,
	})
	require.NoError(t, err)

	// the stale file in this site's folder goes, the other site's file stays
	assert.Contains(t, fc.deleted, "id-stale")
	assert.NotContains(t, fc.deleted, "id-other")
}

func TestRun_RequiresCollection(t *testing.T) {
	m := setupSnapshot(t, map[string]string{"https://wiki.example.com/a": "a"})
	u := newUploader(newFakeClient(), m)

	_, err := u.Run(context.Background(), site, &domain.UploadPlan{}, remote.RunOptions{})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}
