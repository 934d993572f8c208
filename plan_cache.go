package rowparse

import (
	"reflect"
	"sync"
)

// PlanCache provides thread-safe caching of per-type plans. Plans are built
// at most once per type even when several row builders are constructed
// concurrently.
type PlanCache[P any] struct {
	cache sync.Map // map[reflect.Type]*planEntry[P]
}

// planEntry holds the cached plan for a specific type
type planEntry[P any] struct {
	once sync.Once
	plan P
	err  error
}

// NewPlanCache creates a new thread-safe plan cache
func NewPlanCache[P any]() *PlanCache[P] {
	return &PlanCache[P]{}
}

// GetOrBuild returns the plan for t, calling build only if no plan exists
// yet. A failed build is cached as well; plans depend only on the type.
func (pc *PlanCache[P]) GetOrBuild(t reflect.Type, build func(reflect.Type) (P, error)) (P, error) {
	v, ok := pc.cache.Load(t)
	if !ok {
		v, _ = pc.cache.LoadOrStore(t, &planEntry[P]{})
	}
	entry := v.(*planEntry[P])
	entry.once.Do(func() {
		entry.plan, entry.err = build(t)
	})
	return entry.plan, entry.err
}
