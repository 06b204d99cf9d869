package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgocumlu/juke/server/src/clock"
	"github.com/bgocumlu/juke/server/src/media"
	"github.com/bgocumlu/juke/server/src/store"
)

const testVideoID = "dQw4w9WgXcQ"

type fakeBlobs struct {
	mutex    sync.Mutex
	existing map[string]bool
	uploads  map[string][]byte
	probeErr error
	upErr    error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{existing: make(map[string]bool), uploads: make(map[string][]byte)}
}

func (blobs *fakeBlobs) Exists(_ context.Context, key string) (bool, error) {
	blobs.mutex.Lock()
	defer blobs.mutex.Unlock()
	return blobs.existing[key], blobs.probeErr
}

func (blobs *fakeBlobs) Upload(_ context.Context, key string, data []byte, _ string, _ bool) (bool, error) {
	blobs.mutex.Lock()
	defer blobs.mutex.Unlock()
	if blobs.upErr != nil {
		return false, blobs.upErr
	}
	created := !blobs.existing[key]
	blobs.existing[key] = true
	blobs.uploads[key] = data
	return created, nil
}

func (blobs *fakeBlobs) Info(_ context.Context, key string) (*store.ObjectInfo, error) {
	blobs.mutex.Lock()
	defer blobs.mutex.Unlock()
	data, ok := blobs.uploads[key]
	if !ok {
		return &store.ObjectInfo{Name: key, Size: 12345}, nil
	}
	return &store.ObjectInfo{Name: key, Size: int64(len(data))}, nil
}

func (blobs *fakeBlobs) PublicURL(key string) string {
	return "https://cdn.example/jukebox-tracks/" + key
}

func (blobs *fakeBlobs) List(_ context.Context, _ int, _ int) ([]store.ObjectInfo, error) {
	return nil, nil
}

func (blobs *fakeBlobs) Remove(_ context.Context, _ string) error { return nil }

type fakeMedia struct {
	mutex       sync.Mutex
	extracts    int
	scratchDirs []string
	extractErr  error
	gate        chan struct{}
}

func (provider *fakeMedia) Search(_ context.Context, _ string, _ int) ([]media.SearchResult, error) {
	return nil, nil
}

func (provider *fakeMedia) Info(_ context.Context, videoID string, _ bool) (*media.VideoInfo, error) {
	duration := 242.0
	return &media.VideoInfo{ID: videoID, Title: "Some Song", Duration: &duration}, nil
}

func (provider *fakeMedia) SizeEstimate(_ context.Context, _ string, _ int) (*media.SizeEstimate, error) {
	return &media.SizeEstimate{}, nil
}

func (provider *fakeMedia) ExtractAudio(_ context.Context, videoID string, _ string, destDir string) (string, *media.VideoInfo, error) {
	if provider.gate != nil {
		<-provider.gate
	}

	provider.mutex.Lock()
	provider.extracts++
	provider.scratchDirs = append(provider.scratchDirs, destDir)
	provider.mutex.Unlock()

	if provider.extractErr != nil {
		return "", nil, provider.extractErr
	}

	path := filepath.Join(destDir, videoID+".mp3")
	if err := os.WriteFile(path, []byte("mp3-bytes"), 0o644); err != nil {
		return "", nil, err
	}
	duration := 242.0
	return path, &media.VideoInfo{ID: videoID, Title: "Some Song", Duration: &duration}, nil
}

func newTestQueue(blobs *fakeBlobs, provider *fakeMedia, workers int) *Queue {
	return NewQueue(blobs, provider, clock.NewSystemClock(), workers)
}

func TestBlobKey(t *testing.T) {
	require.Equal(t, "yt-"+testVideoID+".mp3", BlobKey(testVideoID))
}

func TestSubmitAndAwait(t *testing.T) {
	blobs := newFakeBlobs()
	provider := &fakeMedia{}
	queue := newTestQueue(blobs, provider, 1)

	taskID := queue.Submit(testVideoID, "")
	result, err := queue.Await(taskID, 5*time.Second)
	require.NoError(t, err)

	require.True(t, result.Success)
	require.Equal(t, testVideoID, result.VideoID)
	require.Equal(t, "Some Song", result.Title)
	require.Equal(t, 242.0, result.Duration)
	require.Equal(t, BlobKey(testVideoID), result.Filename)
	require.Equal(t, blobs.PublicURL(BlobKey(testVideoID)), result.URL)
	require.Equal(t, int64(len("mp3-bytes")), result.Size)
	require.Empty(t, result.Message)

	require.Equal(t, []byte("mp3-bytes"), blobs.uploads[BlobKey(testVideoID)])
}

func TestScratchDirRemoved(t *testing.T) {
	blobs := newFakeBlobs()
	provider := &fakeMedia{}
	queue := newTestQueue(blobs, provider, 1)

	taskID := queue.Submit(testVideoID, "")
	_, err := queue.Await(taskID, 5*time.Second)
	require.NoError(t, err)

	require.Len(t, provider.scratchDirs, 1)
	require.NoDirExists(t, provider.scratchDirs[0])
}

func TestScratchDirRemovedOnFailure(t *testing.T) {
	blobs := newFakeBlobs()
	provider := &fakeMedia{extractErr: errors.New("age restricted")}
	queue := newTestQueue(blobs, provider, 1)

	taskID := queue.Submit(testVideoID, "")
	_, err := queue.Await(taskID, 5*time.Second)
	require.Error(t, err)

	require.Len(t, provider.scratchDirs, 1)
	require.NoDirExists(t, provider.scratchDirs[0])
}

func TestExistingBlobShortCircuits(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.existing[BlobKey(testVideoID)] = true
	provider := &fakeMedia{}
	queue := newTestQueue(blobs, provider, 1)

	taskID := queue.Submit(testVideoID, "")
	result, err := queue.Await(taskID, 5*time.Second)
	require.NoError(t, err)

	require.Equal(t, "File already exists in storage", result.Message)
	require.Equal(t, 0, provider.extracts)

	status, err := queue.Status(taskID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, status.Status)
}

func TestFailedTask(t *testing.T) {
	blobs := newFakeBlobs()
	provider := &fakeMedia{extractErr: errors.New("unavailable")}
	queue := newTestQueue(blobs, provider, 1)

	taskID := queue.Submit(testVideoID, "")
	_, err := queue.Await(taskID, 5*time.Second)
	require.ErrorContains(t, err, "unavailable")

	status, err := queue.Status(taskID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, status.Status)
	require.Contains(t, status.Error, "unavailable")
}

func TestAwaitTimeout(t *testing.T) {
	blobs := newFakeBlobs()
	provider := &fakeMedia{gate: make(chan struct{})}
	queue := newTestQueue(blobs, provider, 1)

	taskID := queue.Submit(testVideoID, "")
	_, err := queue.Await(taskID, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimedOut)

	close(provider.gate)
	result, err := queue.Await(taskID, 5*time.Second)
	require.NoError(t, err)
	require.True(t, result.Success)
}

func TestAwaitUnknownTask(t *testing.T) {
	queue := newTestQueue(newFakeBlobs(), &fakeMedia{}, 1)
	_, err := queue.Await("nope", time.Second)
	require.ErrorIs(t, err, ErrUnknownTask)

	_, err = queue.Status("nope")
	require.ErrorIs(t, err, ErrUnknownTask)
}

func TestQueuePosition(t *testing.T) {
	blobs := newFakeBlobs()
	provider := &fakeMedia{gate: make(chan struct{})}
	queue := newTestQueue(blobs, provider, 1)

	first := queue.Submit("video-1", "")
	second := queue.Submit("video-2", "")
	third := queue.Submit("video-3", "")

	// Give the single worker time to pick up the first task.
	require.Eventually(t, func() bool {
		status, err := queue.Status(first)
		return err == nil && status.Status == StatusProcessing
	}, 2*time.Second, 10*time.Millisecond)

	status, err := queue.Status(second)
	require.NoError(t, err)
	require.Equal(t, StatusPending, status.Status)
	require.Equal(t, 0, status.QueuePosition)

	status, err = queue.Status(third)
	require.NoError(t, err)
	require.Equal(t, 1, status.QueuePosition)

	close(provider.gate)
	for _, id := range []string{first, second, third} {
		_, err := queue.Await(id, 5*time.Second)
		require.NoError(t, err)
	}
}

func TestWorkerCap(t *testing.T) {
	blobs := newFakeBlobs()
	provider := &fakeMedia{gate: make(chan struct{})}
	queue := newTestQueue(blobs, provider, 2)

	ids := make([]string, 0, 4)
	for _, video := range []string{"v1", "v2", "v3", "v4"} {
		ids = append(ids, queue.Submit(video, ""))
	}

	require.Eventually(t, func() bool {
		processing := 0
		for _, id := range ids {
			status, err := queue.Status(id)
			require.NoError(t, err)
			if status.Status == StatusProcessing {
				processing++
			}
		}
		return processing == 2
	}, 2*time.Second, 10*time.Millisecond)

	// The other two stay queued while both workers are busy.
	pending := 0
	for _, id := range ids {
		status, err := queue.Status(id)
		require.NoError(t, err)
		if status.Status == StatusPending {
			pending++
		}
	}
	require.Equal(t, 2, pending)

	close(provider.gate)
	for _, id := range ids {
		_, err := queue.Await(id, 5*time.Second)
		require.NoError(t, err)
	}
}

func TestInflight(t *testing.T) {
	inflight := NewInflight()

	require.True(t, inflight.Acquire("10.0.0.1"))
	require.False(t, inflight.Acquire("10.0.0.1"))
	require.True(t, inflight.Acquire("10.0.0.2"))

	inflight.Bind("10.0.0.1", "task-1")
	taskID, busy := inflight.TaskFor("10.0.0.1")
	require.True(t, busy)
	require.Equal(t, "task-1", taskID)

	inflight.Release("10.0.0.1")
	_, busy = inflight.TaskFor("10.0.0.1")
	require.False(t, busy)
	require.True(t, inflight.Acquire("10.0.0.1"))
}
