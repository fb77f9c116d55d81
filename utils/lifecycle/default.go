package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/ugparu/goflow/utils/logger"
)

type defaultLifecycleManager[T Instance] struct {
	instance             T
	startOnce, closeOnce *sync.Once
	closeChan            chan struct{}
	closed               atomic.Bool
}

// NewDefaultManager returns a manager without a goroutine: Start runs once, Close tears the
// instance down once, and Closed reports whether that happened.
func NewDefaultManager[T Instance](instance T) Manager[T] {
	return &defaultLifecycleManager[T]{
		instance:  instance,
		closeChan: make(chan struct{}),
		startOnce: &sync.Once{},
		closeOnce: &sync.Once{},
	}
}

func (ssc *defaultLifecycleManager[T]) Start(startFunc func(T) error) (err error) {
	select {
	case <-ssc.closeChan:
		return &StartedAfterCloseError{}
	default:
		err = &StartedAlreadyError{}
	}
	ssc.startOnce.Do(func() {
		logger.Debugf(ssc.instance, "Starting")
		err = startFunc(ssc.instance)
	})
	return err
}

func (ssc *defaultLifecycleManager[T]) Close() {
	ssc.closeOnce.Do(func() {
		ssc.closed.Store(true)
		ssc.instance.Close_()
		close(ssc.closeChan)
	})
}

func (ssc *defaultLifecycleManager[T]) Closed() bool {
	return ssc.closed.Load()
}
