package replicator

// syncWorker runs batches one after another on a single goroutine.
type syncWorker struct {
	dispatcher *Dispatcher
	onReport   func(Report)
}

// run dispatches every batch received until batches is closed. Batches
// already queued when the channel closes are still drained.
func (w *syncWorker) run(batches <-chan Batch) {
	for b := range batches {
		r := w.dispatcher.Dispatch(b)

		if w.onReport != nil {
			w.onReport(r)
		}
	}
}
