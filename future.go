package sched

import "sync"

// A Future is a one-shot signal which completes at most once.
// Schedulers return Futures so that a polling loop can wait for progress to become possible.
type Future interface {
	Done() <-chan struct{} // closed when the Future completes
	IsDone() bool          // true iff the Future has completed
	AddListener(fn func()) // fn is invoked once, upon completion (immediately if already complete)
}

// SettableFuture is a Future completed explicitly via Set
type SettableFuture struct {
	lock      sync.Mutex
	done      chan struct{}
	isDone    bool
	listeners []func()
}

// CreateSettableFuture creates an incomplete SettableFuture
func CreateSettableFuture() *SettableFuture {
	return &SettableFuture{done: make(chan struct{})}
}

// ImmediateFuture returns an already completed Future
func ImmediateFuture() Future {
	f := CreateSettableFuture()
	f.Set()
	return f
}

// Set completes this Future, notifying listeners. Subsequent calls have no effect.
// Returns true iff this call completed the Future.
func (f *SettableFuture) Set() bool {
	f.lock.Lock()
	if f.isDone {
		f.lock.Unlock()
		return false
	}
	f.isDone = true
	close(f.done)
	listeners := f.listeners
	f.listeners = nil
	f.lock.Unlock()
	// listeners run outside the lock, since they may complete other futures
	for _, l := range listeners {
		l()
	}
	return true
}

// Done returns a channel which is closed when this Future completes
func (f *SettableFuture) Done() <-chan struct{} {
	return f.done
}

// IsDone returns true iff this Future has completed
func (f *SettableFuture) IsDone() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.isDone
}

// AddListener registers fn to be invoked upon completion
func (f *SettableFuture) AddListener(fn func()) {
	f.lock.Lock()
	if !f.isDone {
		f.listeners = append(f.listeners, fn)
		f.lock.Unlock()
		return
	}
	f.lock.Unlock()
	fn()
}

// numListeners returns the number of listeners waiting on this Future
func (f *SettableFuture) numListeners() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.listeners)
}

// WhenAnyComplete returns a Future which completes as soon as any of the given futures does.
// Nil futures are ignored. With no futures, the result never completes.
func WhenAnyComplete(futures ...Future) Future {
	result := CreateSettableFuture()
	for _, f := range futures {
		if f == nil {
			continue
		}
		if f.IsDone() {
			result.Set()
			return result
		}
	}
	for _, f := range futures {
		if f == nil {
			continue
		}
		f.AddListener(func() { result.Set() })
	}
	return result
}

// deferredFuture builds the Future it delegates to when it is first observed
type deferredFuture struct {
	once   sync.Once
	build  func() Future
	future Future
}

// DeferredFuture returns a Future whose underlying Future is built by build on first use
// (Done, IsDone or AddListener). A nil result from build counts as complete.
func DeferredFuture(build func() Future) Future {
	return &deferredFuture{build: build}
}

func (d *deferredFuture) get() Future {
	d.once.Do(func() {
		d.future = d.build()
		if d.future == nil {
			d.future = ImmediateFuture()
		}
	})
	return d.future
}

// Done returns a channel which is closed when the underlying Future completes
func (d *deferredFuture) Done() <-chan struct{} {
	return d.get().Done()
}

// IsDone returns true iff the underlying Future has completed
func (d *deferredFuture) IsDone() bool {
	return d.get().IsDone()
}

// AddListener registers fn with the underlying Future
func (d *deferredFuture) AddListener(fn func()) {
	d.get().AddListener(fn)
}

// SplitBatchFuture is a Future which carries the result of a SplitSource.NextBatch call
type SplitBatchFuture struct {
	*SettableFuture
	lock      sync.Mutex
	completed bool
	batch     SplitBatch
	err       error
}

// CreateSplitBatchFuture creates an incomplete SplitBatchFuture
func CreateSplitBatchFuture() *SplitBatchFuture {
	return &SplitBatchFuture{SettableFuture: CreateSettableFuture()}
}

// ImmediateSplitBatch returns a completed SplitBatchFuture holding batch
func ImmediateSplitBatch(batch SplitBatch) *SplitBatchFuture {
	f := CreateSplitBatchFuture()
	f.SetBatch(batch)
	return f
}

// SetBatch completes this future with a batch
func (f *SplitBatchFuture) SetBatch(batch SplitBatch) bool {
	f.lock.Lock()
	if f.completed {
		f.lock.Unlock()
		return false
	}
	f.completed = true
	f.batch = batch
	f.lock.Unlock()
	return f.Set()
}

// SetError completes this future with an error
func (f *SplitBatchFuture) SetError(err error) bool {
	f.lock.Lock()
	if f.completed {
		f.lock.Unlock()
		return false
	}
	f.completed = true
	f.err = err
	f.lock.Unlock()
	return f.Set()
}

// Get returns the batch or error this future completed with. It must only be called once IsDone is true.
func (f *SplitBatchFuture) Get() (SplitBatch, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.batch, f.err
}
