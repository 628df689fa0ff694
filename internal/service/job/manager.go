// Package job 管理异步生成任务的状态与取消
package job

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/tracesmith/internal/model"
)

const (
	// 任务在 Redis 中的过期时间（24小时）
	jobTTL = 24 * time.Hour
	// Redis key 前缀
	jobKeyPrefix = "tracesmith:job:"
)

var (
	// ErrNotFound 任务不存在
	ErrNotFound = errors.New("job not found")
	// ErrFinished 任务已结束，无法取消
	ErrFinished = errors.New("job already finished")
)

// RunFunc 任务主体，progress 在每条 trace 完成时调用，返回保存后的数据集 ID
type RunFunc func(ctx context.Context, progress func(completed, passed int)) (datasetID string, err error)

// Manager 任务管理器
// 任务状态保存在内存中，配置 Redis 时同步写入以便多实例查询
type Manager struct {
	mu      sync.RWMutex
	memory  map[string]*model.Job
	running map[string]*activeJob
	redis   *redis.Client
}

// activeJob 运行中的任务
type activeJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager 创建任务管理器，redisClient 可为 nil
func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		memory:  make(map[string]*model.Job),
		running: make(map[string]*activeJob),
		redis:   redisClient,
	}
}

// Start 注册任务并在后台执行
// 任务使用独立的 context，与发起请求的生命周期无关
func (m *Manager) Start(job *model.Job, run RunFunc) *model.Job {
	now := time.Now()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = model.JobStatusRunning
	job.CreatedAt = now
	job.UpdatedAt = now

	ctx, cancel := context.WithCancel(context.Background())
	active := &activeJob{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.memory[job.ID] = job
	m.running[job.ID] = active
	snapshot := *job
	m.mu.Unlock()
	m.persist(&snapshot)

	go func() {
		defer close(active.done)
		defer cancel()

		datasetID, err := run(ctx, func(completed, passed int) {
			m.update(job.ID, func(j *model.Job) {
				j.Completed = completed
				j.Passed = passed
			})
		})
		m.finish(job.ID, datasetID, ctx.Err(), err)
	}()

	return &snapshot
}

// Get 获取任务快照
func (m *Manager) Get(ctx context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	job, ok := m.memory[id]
	var snapshot model.Job
	if ok {
		snapshot = *job
	}
	m.mu.RUnlock()

	if ok {
		return &snapshot, nil
	}

	// 从 Redis 加载其他实例创建的任务
	if m.redis != nil {
		if job := m.loadFromRedis(ctx, id); job != nil {
			return job, nil
		}
	}
	return nil, ErrNotFound
}

// Cancel 取消运行中的任务
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.RLock()
	active, running := m.running[id]
	_, known := m.memory[id]
	m.mu.RUnlock()

	if running {
		active.cancel()
		return nil
	}
	if known {
		return ErrFinished
	}
	if m.redis != nil && m.loadFromRedis(ctx, id) != nil {
		return ErrFinished
	}
	return ErrNotFound
}

// Done 任务结束时关闭的 channel，任务不在运行时返回已关闭的 channel
func (m *Manager) Done(id string) <-chan struct{} {
	m.mu.RLock()
	active, ok := m.running[id]
	m.mu.RUnlock()

	if ok {
		return active.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Shutdown 取消全部运行中的任务并等待其结束
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	actives := make([]*activeJob, 0, len(m.running))
	for _, a := range m.running {
		actives = append(actives, a)
	}
	m.mu.RUnlock()

	for _, a := range actives {
		a.cancel()
	}
	for _, a := range actives {
		select {
		case <-a.done:
		case <-ctx.Done():
			return
		}
	}
}

// finish 记录终态
func (m *Manager) finish(id, datasetID string, ctxErr, runErr error) {
	m.update(id, func(j *model.Job) {
		j.DatasetID = datasetID
		switch {
		case ctxErr != nil:
			j.Status = model.JobStatusCanceled
		case runErr != nil:
			j.Status = model.JobStatusFailed
			j.Error = runErr.Error()
		default:
			j.Status = model.JobStatusCompleted
		}
	})

	m.mu.Lock()
	delete(m.running, id)
	m.mu.Unlock()

	log.Printf("[Job] %s finished", id)
}

// update 修改任务并同步到 Redis
func (m *Manager) update(id string, fn func(j *model.Job)) {
	m.mu.Lock()
	job, ok := m.memory[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	fn(job)
	job.UpdatedAt = time.Now()
	snapshot := *job
	m.mu.Unlock()

	m.persist(&snapshot)
}

// persist 保存任务到 Redis，失败只记录日志
func (m *Manager) persist(job *model.Job) {
	if m.redis == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		log.Printf("Warning: failed to encode job %s: %v", job.ID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.redis.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err(); err != nil {
		log.Printf("Warning: failed to save job to redis: %v", err)
	}
}

// loadFromRedis 从 Redis 加载任务
func (m *Manager) loadFromRedis(ctx context.Context, id string) *model.Job {
	data, err := m.redis.Get(ctx, jobKeyPrefix+id).Result()
	if err != nil {
		return nil
	}

	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil
	}
	return &job
}
