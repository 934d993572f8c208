package rowparse

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test PlanCache functionality
func TestPlanCache(t *testing.T) {
	t.Run("NewPlanCache", func(t *testing.T) {
		cache := NewPlanCache[int]()
		assert.NotNil(t, cache)
	})

	t.Run("GetOrBuild", func(t *testing.T) {
		cache := NewPlanCache[int]()

		// First call should build
		plan, err := cache.GetOrBuild(IntType, func(reflect.Type) (int, error) { return 42, nil })
		require.NoError(t, err)
		assert.Equal(t, 42, plan)

		// Second call should return the cached plan
		plan, err = cache.GetOrBuild(IntType, func(reflect.Type) (int, error) {
			t.Error("build function should not be called second time")
			return 99, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, plan)
	})

	t.Run("GetOrBuild_CachesErrors", func(t *testing.T) {
		cache := NewPlanCache[int]()
		boom := errors.New("boom")

		_, err := cache.GetOrBuild(IntType, func(reflect.Type) (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)

		_, err = cache.GetOrBuild(IntType, func(reflect.Type) (int, error) { return 1, nil })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("SeparateTypes", func(t *testing.T) {
		cache := NewPlanCache[string]()
		build := func(t reflect.Type) (string, error) { return t.String(), nil }

		p1, err := cache.GetOrBuild(IntType, build)
		require.NoError(t, err)
		p2, err := cache.GetOrBuild(StringType, build)
		require.NoError(t, err)

		assert.Equal(t, "int", p1)
		assert.Equal(t, "string", p2)
	})

	t.Run("ConcurrentBuildsOnce", func(t *testing.T) {
		cache := NewPlanCache[int]()
		var builds atomic.Int32

		var wg conc.WaitGroup
		for range 16 {
			wg.Go(func() {
				plan, err := cache.GetOrBuild(IntType, func(reflect.Type) (int, error) {
					builds.Add(1)
					return 7, nil
				})
				assert.NoError(t, err)
				assert.Equal(t, 7, plan)
			})
		}
		wg.Wait()

		assert.Equal(t, int32(1), builds.Load())
	})
}
