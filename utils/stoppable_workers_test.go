package utils

import (
	"context"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestStoppableWorkers(t *testing.T) {
	var started, stopped atomic.Int32
	worker := func(ctx context.Context) {
		started.Add(1)
		<-ctx.Done()
		stopped.Add(1)
	}

	sw := NewStoppableWorkers(worker, worker)
	test.That(t, sw.Add(worker), test.ShouldBeTrue)
	sw.Stop()
	test.That(t, started.Load(), test.ShouldEqual, 3)
	test.That(t, stopped.Load(), test.ShouldEqual, 3)
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	test.That(t, sw.Add(worker), test.ShouldBeFalse)
	sw.Stop()
	test.That(t, started.Load(), test.ShouldEqual, 3)
}
