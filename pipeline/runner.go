package pipeline

import (
	"errors"
	"runtime/debug"
	"sync"

	"github.com/ugparu/goflow/element"
	"github.com/ugparu/goflow/utils/lifecycle"
	"github.com/ugparu/goflow/utils/logger"
)

// mainLoop pulls one link in pull mode until the stream over it closes.
type mainLoop struct {
	link     *element.Link
	wait     bool
	switched bool
	manager  lifecycle.AsyncManager[*mainLoop]

	abortOnce sync.Once
	aborted   chan struct{}
}

func newMainLoop(link *element.Link, waitForStart bool) *mainLoop {
	return &mainLoop{link: link, wait: waitForStart, aborted: make(chan struct{})}
}

func (ml *mainLoop) String() string {
	return "LOOP " + ml.link.ID()
}

func (ml *mainLoop) Close_() {} //nolint:revive // required by lifecycle.AsyncInstance interface

// abort closes the stream over the link in both directions.
func (ml *mainLoop) abort() {
	ml.abortOnce.Do(func() { close(ml.aborted) })
	ml.link.SendEvent(element.StreamClose, element.Out)
	ml.link.SendEvent(element.StreamClose, element.In)
}

func (ml *mainLoop) Step(stopChan <-chan struct{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(ml, "Recovered from %v, closing stream", r)
			logger.Debugf(ml, "%s", debug.Stack())
			ml.abort()
			err = &lifecycle.PanicError{Value: r}
		}
	}()

	if ml.wait {
		select {
		case <-ml.link.Started():
			ml.wait = false
		case <-stopChan:
			return &lifecycle.BreakError{}
		case <-ml.aborted:
			return &lifecycle.BreakError{}
		}
	}

	select {
	case <-stopChan:
		return &lifecycle.BreakError{}
	default:
	}

	if !ml.switched {
		logger.Debugf(ml, "Switching %s to pull mode", ml.link)
		ml.link.SendEvent(element.LinkSwitchToPullMode, element.In)
		ml.switched = true
	}
	if ml.link.IsClosed() {
		logger.Debug(ml, "Stream closed")
		return &lifecycle.BreakError{}
	}
	ml.link.PumpOnce(true)
	return nil
}

// run drives the loop on the calling goroutine.
func (ml *mainLoop) run() error {
	for {
		err := ml.Step(nil)
		if err == nil {
			continue
		}
		var brk *lifecycle.BreakError
		if errors.As(err, &brk) {
			return nil
		}
		return err
	}
}
