package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// HeartbeatFunc records liveness of the current run. It returns ErrRunLost
// when the run was reclaimed; routines should stop early in that case.
type HeartbeatFunc func(ctx context.Context) error

// SyncInput is everything a routine needs for one run.
type SyncInput struct {
	AccountID   string
	APIFamily   domain.APIFamily
	AccessToken string
	Cursor      domain.Cursor
	Backfilled  bool
	Heartbeat   HeartbeatFunc
}

// Summary is the result of one routine run. NextCursor is nil when the
// cursor did not move.
type Summary struct {
	Fetched           int
	Stored            int
	ErrorMessage      string
	NextCursor        *domain.Cursor
	BackfillCompleted bool
}

// RunSummary converts the summary into its persisted form.
func (s *Summary) RunSummary() domain.RunSummary {
	return domain.RunSummary{
		Fetched:      s.Fetched,
		Stored:       s.Stored,
		ErrorMessage: s.ErrorMessage,
	}
}

// Routine synchronizes one api family for one account.
type Routine interface {
	Sync(ctx context.Context, in SyncInput) (Summary, error)
}

// RoutineFunc adapts a function to Routine.
type RoutineFunc func(ctx context.Context, in SyncInput) (Summary, error)

// Sync calls f.
func (f RoutineFunc) Sync(ctx context.Context, in SyncInput) (Summary, error) {
	return f(ctx, in)
}

// Registry maps api families to their routines. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	routines map[domain.APIFamily]Routine
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{routines: make(map[domain.APIFamily]Routine)}
}

// Register binds a routine to a family, replacing any previous one.
func (r *Registry) Register(family domain.APIFamily, routine Routine) error {
	if !family.Valid() {
		return fmt.Errorf("registering routine: unknown api family %q", family)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routines[family] = routine
	return nil
}

// Get returns the routine of a family.
func (r *Registry) Get(family domain.APIFamily) (Routine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routine, ok := r.routines[family]
	return routine, ok
}

// Families lists the registered families in a stable order.
func (r *Registry) Families() []domain.APIFamily {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.APIFamily, 0, len(r.routines))
	for _, f := range domain.AllFamilies {
		if _, ok := r.routines[f]; ok {
			out = append(out, f)
		}
	}
	return slices.Clip(out)
}
