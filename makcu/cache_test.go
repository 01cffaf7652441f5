package makcu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandCacheButtonStrings(t *testing.T) {
	cache := buildCommandCache()
	expected := map[MouseButton]string{
		ButtonLeft:   "left",
		ButtonRight:  "right",
		ButtonMiddle: "middle",
		ButtonSide1:  "ms1",
		ButtonSide2:  "ms2",
	}
	for b, name := range expected {
		press, ok := cache.button(b, true)
		assert.True(t, ok)
		assert.Equal(t, "km."+name+"(1)", press)

		release, ok := cache.button(b, false)
		assert.True(t, ok)
		assert.Equal(t, "km."+name+"(0)", release)
	}
}

func TestCommandCacheLockStrings(t *testing.T) {
	cache := buildCommandCache()
	expected := map[LockTarget]string{
		LockX:      "mx",
		LockY:      "my",
		LockLeft:   "ml",
		LockRight:  "mr",
		LockMiddle: "mm",
		LockSide1:  "ms1",
		LockSide2:  "ms2",
	}
	for target, suffix := range expected {
		set, ok := cache.lock(target, true)
		assert.True(t, ok)
		assert.Equal(t, "km.lock_"+suffix+"(1)", set)

		clear, ok := cache.lock(target, false)
		assert.True(t, ok)
		assert.Equal(t, "km.lock_"+suffix+"(0)", clear)

		query, ok := cache.lockQuery(target)
		assert.True(t, ok)
		assert.Equal(t, "km.lock_"+suffix+"()", query)
	}
}

func TestCommandCacheBoundsChecked(t *testing.T) {
	cache := buildCommandCache()
	_, ok := cache.button(ButtonUnknown, true)
	assert.False(t, ok)
	_, ok = cache.lock(LockTarget(200), true)
	assert.False(t, ok)
	_, ok = cache.lockQuery(LockTarget(7))
	assert.False(t, ok)
}
