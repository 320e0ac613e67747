package reactive

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReactiveCycle(t *testing.T) {
	obs := New[int](2)
	sub := obs.Subscribe()
	defer sub.Cancel()
	obs.Publish(1)
	obs.Publish(2)
	assert.Equal(t, 1, <-sub.Channel())
	assert.Equal(t, 2, <-sub.Channel())
}

func TestReactiveMultipleSubscribers(t *testing.T) {
	obs := New[string](2)
	sub1 := obs.Subscribe()
	defer sub1.Cancel()
	sub2 := obs.Subscribe()
	defer sub2.Cancel()

	obs.Publish("上班時間 09:00:00")
	assert.Equal(t, "上班時間 09:00:00", <-sub1.Channel())
	assert.Equal(t, "上班時間 09:00:00", <-sub2.Channel())
}

func TestReactiveFullBufferKeepsNewest(t *testing.T) {
	obs := New[int](2)
	sub := obs.Subscribe()
	defer sub.Cancel()

	for i := 0; i < 10; i++ {
		obs.Publish(i)
	}
	assert.Equal(t, 8, <-sub.Channel())
	assert.Equal(t, 9, <-sub.Channel())
}

func TestReactiveCancel(t *testing.T) {
	obs := New[int](2)
	sub1 := obs.Subscribe()
	sub2 := obs.Subscribe()
	defer sub2.Cancel()
	sub1.Cancel()
	sub1.Cancel()

	obs.Publish(1)
	assert.Equal(t, 1, <-sub2.Channel())

	v, ok := <-sub1.Channel()
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestReactiveLatest(t *testing.T) {
	obs := New[[]string](0)

	_, ok := obs.Latest()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		obs.Publish([]string{fmt.Sprintf("line %d", i)})
	}
	v, ok := obs.Latest()
	assert.True(t, ok)
	assert.Equal(t, []string{"line 4"}, v)
}

func FuzzTestDataIntegrity(f *testing.F) {
	obs := New[string](100)

	sub1 := obs.Subscribe()
	c1 := sub1.Channel()
	defer sub1.Cancel()
	sub2 := obs.Subscribe()
	c2 := sub2.Channel()
	defer sub2.Cancel()

	for _, v := range []string{"a", "b", "打上班卡", "下班時間 18:00:00", "qwerty"} {
		f.Add(v)
	}

	f.Fuzz(func(t *testing.T, a string) {
		obs.Publish(a)
		assert.Equal(t, a, <-c1)
		assert.Equal(t, a, <-c2)
	})
}
