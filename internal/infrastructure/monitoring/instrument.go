package monitoring

import (
	"context"
	"time"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// InstrumentExtractor wraps a recipe extractor with request metrics and
// a client span per call.
func InstrumentExtractor(inner outbound.RecipeExtractor, metrics *MetricsCollector, tracing *TracingProvider) outbound.RecipeExtractor {
	return &instrumentedExtractor{inner: inner, metrics: metrics, tracing: tracing}
}

type instrumentedExtractor struct {
	inner   outbound.RecipeExtractor
	metrics *MetricsCollector
	tracing *TracingProvider
}

func (e *instrumentedExtractor) Extract(ctx context.Context, transcript string, caption *string, prefs outbound.ExtractionPreferences) (recipe.Document, error) {
	ctx, span := e.tracing.StartProviderSpan(ctx, e.inner.Name(), "extract")
	defer span.End()

	start := time.Now()
	doc, err := e.inner.Extract(ctx, transcript, caption, prefs)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		e.tracing.RecordError(ctx, err)
	}
	e.metrics.AIRequest(e.inner.Name(), "extract", status, duration)
	return doc, err
}

func (e *instrumentedExtractor) Name() string {
	return e.inner.Name()
}

// InstrumentStreamer wraps a chat streamer with request metrics and a
// client span per stream.
func InstrumentStreamer(inner outbound.ChatStreamer, name string, metrics *MetricsCollector, tracing *TracingProvider) outbound.ChatStreamer {
	return &instrumentedStreamer{inner: inner, name: name, metrics: metrics, tracing: tracing}
}

type instrumentedStreamer struct {
	inner   outbound.ChatStreamer
	name    string
	metrics *MetricsCollector
	tracing *TracingProvider
}

func (s *instrumentedStreamer) StreamReply(ctx context.Context, prompt outbound.ChatPrompt, onDelta func(delta string) error) error {
	ctx, span := s.tracing.StartProviderSpan(ctx, s.name, "chat_stream")
	defer span.End()

	start := time.Now()
	err := s.inner.StreamReply(ctx, prompt, onDelta)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		s.tracing.RecordError(ctx, err)
	}
	s.metrics.AIRequest(s.name, "chat_stream", status, duration)
	return err
}

// InstrumentDownloader wraps a video downloader with stage metrics and
// a pipeline span per download.
func InstrumentDownloader(inner outbound.VideoDownloader, metrics *MetricsCollector, tracing *TracingProvider) outbound.VideoDownloader {
	return &instrumentedDownloader{inner: inner, metrics: metrics, tracing: tracing}
}

type instrumentedDownloader struct {
	inner   outbound.VideoDownloader
	metrics *MetricsCollector
	tracing *TracingProvider
}

func (d *instrumentedDownloader) Probe(ctx context.Context, rawURL string) (*outbound.VideoInfo, error) {
	ctx, span := d.tracing.StartStageSpan(ctx, "probe", rawURL)
	defer span.End()

	start := time.Now()
	info, err := d.inner.Probe(ctx, rawURL)
	if err != nil {
		d.tracing.RecordError(ctx, err)
	}
	d.metrics.PipelineStage("probe", time.Since(start), err)
	return info, err
}

func (d *instrumentedDownloader) Download(ctx context.Context, rawURL, dir string) (string, error) {
	ctx, span := d.tracing.StartStageSpan(ctx, "download", rawURL)
	defer span.End()

	start := time.Now()
	path, err := d.inner.Download(ctx, rawURL, dir)
	if err != nil {
		d.tracing.RecordError(ctx, err)
	}
	d.metrics.PipelineStage("download", time.Since(start), err)
	return path, err
}

// InstrumentTranscriber wraps a transcriber with stage metrics and a
// pipeline span per transcription.
func InstrumentTranscriber(inner outbound.Transcriber, metrics *MetricsCollector, tracing *TracingProvider) outbound.Transcriber {
	return &instrumentedTranscriber{inner: inner, metrics: metrics, tracing: tracing}
}

type instrumentedTranscriber struct {
	inner   outbound.Transcriber
	metrics *MetricsCollector
	tracing *TracingProvider
}

func (t *instrumentedTranscriber) Transcribe(ctx context.Context, mediaPath string) (string, error) {
	ctx, span := t.tracing.StartStageSpan(ctx, "transcribe", mediaPath)
	defer span.End()

	start := time.Now()
	text, err := t.inner.Transcribe(ctx, mediaPath)
	if err != nil {
		t.tracing.RecordError(ctx, err)
	}
	t.metrics.PipelineStage("transcribe", time.Since(start), err)
	return text, err
}
