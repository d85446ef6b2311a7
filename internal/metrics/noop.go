package metrics

import "time"

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// NewNoop returns a Recorder that does nothing.
func NewNoop() *NoopRecorder {
	return &NoopRecorder{}
}

func (NoopRecorder) IncLinkGenerated(string)                               {}
func (NoopRecorder) IncClickTracked(string)                                {}
func (NoopRecorder) IncConversionRecorded(string)                          {}
func (NoopRecorder) AddRevenue(string, int64)                              {}
func (NoopRecorder) IncLandingView(string)                                 {}
func (NoopRecorder) IncEventPublished(string, string)                      {}
func (NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}
