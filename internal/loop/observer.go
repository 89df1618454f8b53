package loop

import "sync/atomic"

// Observer receives the model stream of a loop.
//
// OnModel is called with the current model first, then with every published
// model in dispatch order. Exactly one of OnComplete (loop disposed) or
// OnError (event source failed) ends the stream, unless the observer was
// cancelled first. Calls for one observer never overlap.
type Observer[M any] interface {
	OnModel(model M)
	OnError(err error)
	OnComplete()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are no-ops.
type ObserverFuncs[M any] struct {
	Model    func(model M)
	Error    func(err error)
	Complete func()
}

func (o ObserverFuncs[M]) OnModel(model M) {
	if o.Model != nil {
		o.Model(model)
	}
}

func (o ObserverFuncs[M]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs[M]) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

type notificationKind int

const (
	notifyModel notificationKind = iota + 1
	notifyError
	notifyComplete
)

type notification[M any] struct {
	kind  notificationKind
	model M
	err   error
}

// subscription delivers notifications to one observer on its own goroutine,
// so a slow observer never holds up dispatch.
type subscription[M any] struct {
	observer  Observer[M]
	queue     *mailbox[notification[M]]
	cancelled atomic.Bool
}

func newSubscription[M any](o Observer[M]) *subscription[M] {
	s := &subscription[M]{
		observer: o,
		queue:    newMailbox[notification[M]](),
	}
	go s.run()
	return s
}

func (s *subscription[M]) publish(model M) {
	s.queue.Enqueue(notification[M]{kind: notifyModel, model: model})
}

func (s *subscription[M]) fail(err error) {
	s.queue.Enqueue(notification[M]{kind: notifyError, err: err})
	s.queue.Close()
}

func (s *subscription[M]) complete() {
	s.queue.Enqueue(notification[M]{kind: notifyComplete})
	s.queue.Close()
}

func (s *subscription[M]) cancel() {
	s.cancelled.Store(true)
	s.queue.Discard()
}

func (s *subscription[M]) run() {
	for {
		n, ok := s.queue.TryDequeue()
		if !ok {
			if s.queue.Drained() {
				return
			}
			<-s.queue.Wait()
			continue
		}

		if s.cancelled.Load() {
			return
		}

		switch n.kind {
		case notifyModel:
			s.observer.OnModel(n.model)
		case notifyError:
			s.observer.OnError(n.err)
			return
		case notifyComplete:
			s.observer.OnComplete()
			return
		}
	}
}
