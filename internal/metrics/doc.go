// Package metrics provides run and node observability hooks. The engine
// reports through the Recorder interface; NoopRecorder is used when metrics
// are not configured and PrometheusRecorder exports them for scraping.
package metrics
