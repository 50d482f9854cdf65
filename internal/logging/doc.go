// Package logging provides structured logging for docsearch.
//
// It wraps zap with a Trace level below Debug, optional OpenTelemetry
// output through the otelzap bridge, encoder-level redaction of API keys,
// and sampling that never drops errors. Correlation data travels in the
// context:
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "document indexed", zap.String("id", id))
//
// produces an entry carrying index.run_id (and trace_id/span_id when a
// span is active).
//
// Tests use TestLogger:
//
//	tl := logging.NewTestLogger()
//	pipeline := indexing.NewPipeline(embedder, store, indexing.Options{Logger: tl.Logger})
//	tl.AssertLogged(t, zapcore.WarnLevel, "embedding failed")
package logging
