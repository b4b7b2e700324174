package httpapi

import (
	"context"
	"testing"
	"time"
)

func TestJoinContextsCancelsOnEitherSide(t *testing.T) {
	a, cancelA := context.WithCancel(context.Background())
	b := context.Background()
	joined, cancel := joinContexts(a, b)
	defer cancel()

	cancelA()
	select {
	case <-joined.Done():
	case <-time.After(time.Second):
		t.Fatalf("joined context not cancelled with first parent")
	}

	c, cancelC := context.WithCancel(context.Background())
	joined2, cancel2 := joinContexts(context.Background(), c)
	defer cancel2()
	cancelC()
	select {
	case <-joined2.Done():
	case <-time.After(time.Second):
		t.Fatalf("joined context not cancelled with second parent")
	}
}
