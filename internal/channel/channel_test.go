package channel

import "testing"

func TestBuffered_TrySendRespectsCapacity(t *testing.T) {
	c := New[int](2)

	if !c.TrySend(1) || !c.TrySend(2) {
		t.Fatal("expected sends within capacity to succeed")
	}
	if c.TrySend(3) {
		t.Error("expected send to a full queue to fail")
	}
	if c.Len() != 2 {
		t.Errorf("expected length 2, got %d", c.Len())
	}

	if v := <-c.Receive(); v != 1 {
		t.Errorf("expected FIFO order, got %d", v)
	}
	if !c.TrySend(3) {
		t.Error("expected send after a receive to succeed")
	}
}

func TestBuffered_CloseDrains(t *testing.T) {
	c := NewBuffered[string](4)
	c.Send("a")
	c.Send("b")
	c.Close()

	var got []string
	for v := range c.Receive() {
		got = append(got, v)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected drained values %v", got)
	}
}
