package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bgocumlu/juke/server/src/clock"
	"github.com/bgocumlu/juke/server/src/logger"
	"github.com/bgocumlu/juke/server/src/media"
	"github.com/bgocumlu/juke/server/src/store"
)

const (
	DefaultWorkers = 3

	existsMessage = "File already exists in storage"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrTimedOut    = errors.New("download timed out")
)

// BlobKey derives the deterministic storage key for a provider id.
// Idempotency of the whole pipeline rests on this derivation plus the
// store treating duplicate uploads as a no-op.
func BlobKey(videoID string) string {
	return "yt-" + videoID + ".mp3"
}

// Queue accepts ingest jobs and processes at most `workers` of them
// concurrently. The backlog is unbounded FIFO; tasks are retained in
// the map until process exit. Workers start lazily on the first
// submission.
type Queue struct {
	blobs   store.BlobStore
	media   media.Provider
	clock   clock.Clock
	workers int

	startOnce sync.Once
	mutex     sync.Mutex
	cond      *sync.Cond
	tasks     map[string]*Task
	backlog   []*Task
}

func NewQueue(blobs store.BlobStore, provider media.Provider, clk clock.Clock, workers int) *Queue {
	if workers < 1 {
		workers = DefaultWorkers
	}

	queue := &Queue{
		blobs:   blobs,
		media:   provider,
		clock:   clk,
		workers: workers,
		tasks:   make(map[string]*Task),
	}
	queue.cond = sync.NewCond(&queue.mutex)

	return queue
}

// Submit appends a new pending task and returns its id immediately.
func (queue *Queue) Submit(videoID string, format string) string {
	if format == "" {
		format = media.DefaultFormat
	}

	task := &Task{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		Format:    format,
		CreatedAt: queue.clock.Now(),
		status:    StatusPending,
		done:      make(chan struct{}),
	}

	queue.startOnce.Do(func() {
		for i := 0; i < queue.workers; i++ {
			go queue.work()
		}
	})

	queue.mutex.Lock()
	queue.tasks[task.ID] = task
	queue.backlog = append(queue.backlog, task)
	queue.mutex.Unlock()
	queue.cond.Signal()

	logger.Infow("Download task submitted", "task", task.ID, "video", videoID)
	return task.ID
}

// Await blocks until the task reaches a terminal state or the timeout
// elapses. A failed task returns its recorded error.
func (queue *Queue) Await(taskID string, timeout time.Duration) (*Result, error) {
	queue.mutex.Lock()
	task, ok := queue.tasks[taskID]
	queue.mutex.Unlock()
	if !ok {
		return nil, ErrUnknownTask
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-task.done:
	case <-timer.C:
		return nil, ErrTimedOut
	}

	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	if task.err != nil {
		return nil, task.err
	}
	return task.result, nil
}

// Status reports the task state together with a best-effort count of
// pending tasks ahead of it.
func (queue *Queue) Status(taskID string) (*TaskStatus, error) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	task, ok := queue.tasks[taskID]
	if !ok {
		return nil, ErrUnknownTask
	}

	status := &TaskStatus{
		TaskID:    task.ID,
		Status:    task.status,
		CreatedAt: task.CreatedAt,
		Result:    task.result,
	}
	if task.err != nil {
		status.Error = task.err.Error()
	}
	for _, queued := range queue.backlog {
		if queued.ID == task.ID {
			break
		}
		status.QueuePosition++
	}

	return status, nil
}

func (queue *Queue) work() {
	for {
		task := queue.next()
		queue.process(task)
	}
}

func (queue *Queue) next() *Task {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	for len(queue.backlog) == 0 {
		queue.cond.Wait()
	}

	task := queue.backlog[0]
	queue.backlog = queue.backlog[1:]
	task.status = StatusProcessing
	return task
}

func (queue *Queue) process(task *Task) {
	result, err := queue.run(task)
	queue.mutex.Lock()
	if err != nil {
		task.status = StatusFailed
		task.err = err
	} else {
		task.status = StatusCompleted
		task.result = result
	}
	queue.mutex.Unlock()
	close(task.done)

	if err != nil {
		logger.Warnw("Download task failed", "task", task.ID, "video", task.VideoID, "error", err)
	} else {
		logger.Infow("Download task completed", "task", task.ID, "video", task.VideoID, "url", result.URL)
	}
}

func (queue *Queue) run(task *Task) (*Result, error) {
	ctx := context.Background()
	key := BlobKey(task.VideoID)

	exists, err := queue.blobs.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("probe blob store: %w", err)
	}
	if exists {
		return queue.existingResult(ctx, task, key)
	}

	scratchDir, err := os.MkdirTemp("", "juke-ingest-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	path, info, err := queue.media.ExtractAudio(ctx, task.VideoID, task.Format, scratchDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read extracted audio: %w", err)
	}

	// Duplicate uploads surface as created=false, which is success.
	if _, err := queue.blobs.Upload(ctx, key, data, "audio/mpeg", true); err != nil {
		return nil, err
	}

	result := &Result{
		Success:  true,
		VideoID:  task.VideoID,
		Title:    info.Title,
		Artwork:  artworkFor(task.VideoID, info),
		Filename: key,
		URL:      queue.blobs.PublicURL(key),
		Size:     int64(len(data)),
	}
	if info.Duration != nil {
		result.Duration = *info.Duration
	}

	return result, nil
}

func (queue *Queue) existingResult(ctx context.Context, task *Task, key string) (*Result, error) {
	info, err := queue.media.Info(ctx, task.VideoID, true)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for existing blob: %w", err)
	}

	result := &Result{
		Success:  true,
		VideoID:  task.VideoID,
		Title:    info.Title,
		Artwork:  artworkFor(task.VideoID, info),
		Filename: key,
		URL:      queue.blobs.PublicURL(key),
		Message:  existsMessage,
	}
	if info.Duration != nil {
		result.Duration = *info.Duration
	}
	if object, err := queue.blobs.Info(ctx, key); err == nil {
		result.Size = object.Size
	}

	return result, nil
}

func artworkFor(videoID string, info *media.VideoInfo) string {
	if info != nil && info.Thumbnail != "" {
		return info.Thumbnail
	}
	return media.ThumbnailURL(videoID)
}
