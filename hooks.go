package compactor

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// BeforeCompactionHook is called once a compaction attempt has passed its
// trigger evaluation, before the executor runs. An error aborts the attempt.
type BeforeCompactionHook func(ctx context.Context, promptID uuid.UUID) error

// AfterCompactionHook is called with the attempt's terminal result.
type AfterCompactionHook func(ctx context.Context, result *Result) error

// HookRegistry holds lifecycle hooks around compaction attempts.
type HookRegistry struct {
	mu               sync.RWMutex
	beforeCompaction []BeforeCompactionHook
	afterCompaction  []AfterCompactionHook
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// OnBeforeCompaction registers a hook to run before each compaction attempt.
func (r *HookRegistry) OnBeforeCompaction(hook BeforeCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompaction = append(r.beforeCompaction, hook)
}

// OnAfterCompaction registers a hook to run after each compaction attempt.
func (r *HookRegistry) OnAfterCompaction(hook AfterCompactionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompaction = append(r.afterCompaction, hook)
}

// TriggerBeforeCompaction calls all registered before hooks in order.
func (r *HookRegistry) TriggerBeforeCompaction(ctx context.Context, promptID uuid.UUID) error {
	r.mu.RLock()
	hooks := make([]BeforeCompactionHook, len(r.beforeCompaction))
	copy(hooks, r.beforeCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, promptID); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompaction calls all registered after hooks in order.
func (r *HookRegistry) TriggerAfterCompaction(ctx context.Context, result *Result) error {
	r.mu.RLock()
	hooks := make([]AfterCompactionHook, len(r.afterCompaction))
	copy(hooks, r.afterCompaction)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, result); err != nil {
			return err
		}
	}
	return nil
}
