package tasktype

import (
	"context"
	"fmt"
	"sync"

	"github.com/contentd/moderation/internal/domain/entity"
)

// Evaluator implements the approval capability of one task variant.
type Evaluator interface {
	// CanAct reports whether the actor may approve or reject the task.
	CanAct(ctx context.Context, actor *entity.User, task *entity.Task) (bool, error)

	// EligibleActors returns every user currently capable of acting on the
	// task. The notifier derives recipient sets from this.
	EligibleActors(ctx context.Context, task *entity.Task) ([]*entity.User, error)
}

// Registry maps task type identifiers to their evaluators.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[string]Evaluator)}
}

// Register binds an evaluator to a task type identifier, replacing any
// previous binding.
func (r *Registry) Register(taskType string, evaluator Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[taskType] = evaluator
}

// Get returns the evaluator for a task type.
func (r *Registry) Get(taskType string) (Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evaluator, ok := r.evaluators[taskType]
	if !ok {
		return nil, fmt.Errorf("unknown task type: %s", taskType)
	}
	return evaluator, nil
}

// Validate reports whether the task type is registered. Task creation rejects
// unknown types so workflow definitions can only reference evaluable tasks.
func (r *Registry) Validate(taskType string) error {
	_, err := r.Get(taskType)
	return err
}
