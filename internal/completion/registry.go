package completion

import (
	"sync"
	"time"

	"fieldTasks/internal/logger"
	"fieldTasks/internal/models/task"
	"fieldTasks/internal/service"
	"fieldTasks/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Key struct {
	UserID uuid.UUID
	TaskID uuid.UUID
}

type Factory func(session.Principal, *task.Task) *Workflow

// Registry хранит по одному черновику на пару сотрудник+задача
type Registry struct {
	mu          sync.Mutex
	drafts      map[Key]*Workflow
	newWorkflow Factory
	now         func() time.Time
}

func NewRegistry(newWorkflow Factory) *Registry {
	return &Registry{
		drafts:      make(map[Key]*Workflow),
		newWorkflow: newWorkflow,
		now:         time.Now,
	}
}

func (r *Registry) Open(principal session.Principal, t *task.Task) (*Workflow, error) {
	if t.IsCompleted() {
		return nil, service.NewAlreadyCompleted(t.ID.String())
	}

	key := Key{UserID: principal.UserID, TaskID: t.ID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.drafts[key]; ok && !w.Finished() {
		return w, nil
	}

	w := r.newWorkflow(principal, t)
	r.drafts[key] = w
	logger.Info("Completion: Открыт черновик",
		zap.String("task_id", t.ID.String()),
		zap.String("user_id", principal.UserID.String()))
	return w, nil
}

func (r *Registry) Get(principal session.Principal, taskID uuid.UUID) (*Workflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.drafts[Key{UserID: principal.UserID, TaskID: taskID}]
	return w, ok
}

func (r *Registry) Discard(principal session.Principal, taskID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, Key{UserID: principal.UserID, TaskID: taskID})
}

// Sweep удаляет отправленные черновики и черновики, брошенные дольше idle
func (r *Registry) Sweep(idle time.Duration) int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, w := range r.drafts {
		if w.Finished() || w.idleFor(now) > idle {
			delete(r.drafts, key)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}
