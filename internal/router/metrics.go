package router

// MetricsReporter is the subset of metric operations the router needs.
// internal/metrics.Collector implements this; tests may supply a no-op or
// recording fake. Decoupling the router from the concrete Prometheus type
// keeps this package free of a metrics import cycle, mirroring how
// bfd.Manager consumes a MetricsReporter interface instead of importing
// internal/metrics directly.
type MetricsReporter interface {
	SetHubCount(n int)
	SetSessionCount(n int)
	IncMessagesRouted()
	IncMessagesDropped()
	IncSessionOpened()
	IncSessionClosed(reason Reason)
}

type noopMetrics struct{}

func (noopMetrics) SetHubCount(int)           {}
func (noopMetrics) SetSessionCount(int)       {}
func (noopMetrics) IncMessagesRouted()        {}
func (noopMetrics) IncMessagesDropped()       {}
func (noopMetrics) IncSessionOpened()         {}
func (noopMetrics) IncSessionClosed(Reason)   {}
