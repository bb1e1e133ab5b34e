package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifier(t *testing.T) {
	var n Notifier[string]
	var got []string

	cancelA := n.Subscribe(func(v string) { got = append(got, "a:"+v) })
	n.Subscribe(func(v string) { got = append(got, "b:"+v) })

	n.Notify("x")
	assert.Equal(t, []string{"a:x", "b:x"}, got)

	cancelA()
	cancelA()
	got = nil
	n.Notify("y")
	assert.Equal(t, []string{"b:y"}, got)
	assert.Equal(t, 1, n.Len())
}

func TestNotifierUnsubscribeDuringNotify(t *testing.T) {
	var n Notifier[int]
	calls := 0
	var cancel func()
	cancel = n.Subscribe(func(int) {
		calls++
		cancel()
	})

	n.Notify(1)
	n.Notify(2)
	assert.Equal(t, 1, calls)
	assert.Zero(t, n.Len())
}
