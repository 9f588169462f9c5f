package bridge

import "github.com/seantiz/chatbridge/internal/model"

// HandleMeta processes the worker's first event for a run. The worker's rid
// is unknown to us until this moment, so the configured Matcher picks which
// pending request it belongs to and the correlation key is bound exactly
// once. The worker is untrusted: an empty rid is a correlation miss, never a
// binding.
func (e *Engine) HandleMeta(rid string) {
	eventsTotal.WithLabelValues("meta").Inc()

	if rid == "" {
		correlationMissesTotal.WithLabelValues("meta").Inc()
		e.logger.Warn("meta with empty rid")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, bound := e.byKey[rid]; bound {
		e.logger.Debug("duplicate meta", "rid", rid)
		return
	}

	candidates := make([]Candidate, 0, len(e.order))
	for _, r := range e.order {
		if r.CorrelationKey == "" && r.Phase == model.PhaseQueued {
			candidates = append(candidates, Candidate{
				ID:        r.ID,
				Model:     r.Model,
				CreatedAt: r.CreatedAt,
			})
		}
	}

	id := e.matcher.Match(rid, candidates)
	r := e.requests[id]
	if r == nil || r.CorrelationKey != "" || r.Phase != model.PhaseQueued {
		correlationMissesTotal.WithLabelValues("meta").Inc()
		e.logger.Warn("no pending request for meta", "rid", rid)
		return
	}

	r.CorrelationKey = rid
	e.byKey[rid] = r
	r.Phase = model.PhaseStarted
	if r.Mode == model.ModeStream {
		e.stopStartLocked(r)
		e.armIdleLocked(r)
	} else {
		// Buffered accumulation is silent, so the start timer stays on duty
		// as the progress bound: re-armed here and on every delta, retired
		// by done.
		e.armStartLocked(r)
	}

	e.logger.Info("request correlated", "request_id", r.ID, "rid", rid)
}

// HandleDelta forwards one content fragment to the matched request's sink.
// Streaming requests re-arm the idle timer on every fragment; buffered
// requests re-arm the start timer, their only progress bound.
func (e *Engine) HandleDelta(rid, text string) {
	eventsTotal.WithLabelValues("delta").Inc()

	if rid == "" {
		correlationMissesTotal.WithLabelValues("delta").Inc()
		e.logger.Warn("delta with empty rid", "chars", len(text))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.byKey[rid]
	if r == nil {
		correlationMissesTotal.WithLabelValues("delta").Inc()
		e.logger.Warn("delta for unknown rid", "rid", rid, "chars", len(text))
		return
	}

	if r.Phase == model.PhaseStarted {
		r.Phase = model.PhaseStreaming
	}

	if err := r.sink.Emit(text); err != nil {
		e.logger.Warn("sink write failed", "request_id", r.ID, "error", err)
		e.finishLocked(r, model.PhaseFailed, "", model.Usage{}, func(s Sink) {
			s.Fail(err)
		})
		return
	}
	r.contentChars += len(text)

	// A late delta after done must not re-arm anything; the completion
	// timer already owns the request.
	if r.Phase == model.PhaseCompleting {
		return
	}
	if r.Mode == model.ModeStream {
		e.armIdleLocked(r)
	} else {
		e.armStartLocked(r)
	}
}

// HandleDone marks a request content-complete. The sink stays open: the
// worker still owes a usage event, and closing now would drop its token
// accounting. The completion timer bounds that wait.
func (e *Engine) HandleDone(rid string) {
	eventsTotal.WithLabelValues("done").Inc()

	if rid == "" {
		e.logger.Debug("done with empty rid")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.byKey[rid]
	if r == nil {
		// Expected after a timeout eviction; not an error.
		e.logger.Debug("done for unknown rid", "rid", rid)
		return
	}
	if r.Phase == model.PhaseCompleting {
		return
	}

	r.Phase = model.PhaseCompleting
	e.stopStartLocked(r)
	e.stopIdleLocked(r)
	e.armCompletionLocked(r)
}

// HandleUsage is the terminal event: it settles the sink with the final
// usage accounting and evicts the request.
func (e *Engine) HandleUsage(rid string, usage model.Usage) {
	eventsTotal.WithLabelValues("usage").Inc()

	if rid == "" {
		e.logger.Debug("usage with empty rid")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.byKey[rid]
	if r == nil {
		e.logger.Debug("usage for unknown rid", "rid", rid)
		return
	}
	if r.Phase != model.PhaseCompleting {
		// Worker skipped done; fold both steps into one.
		r.Phase = model.PhaseCompleting
	}

	e.finishLocked(r, model.PhaseFinished, model.FinishReasonStop, usage, func(s Sink) {
		s.Close(model.FinishReasonStop, usage)
	})
	e.logger.Info("request finished", "request_id", r.ID, "rid", rid,
		"total_tokens", usage.TotalTokens)
}

// onStartTimeout fires when no meta bound the request before the deadline,
// or, in buffered mode, when the worker went silent after correlating.
func (e *Engine) onStartTimeout(id string, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.requests[id]
	if r == nil || r.timerSeq != seq {
		return
	}

	switch r.Phase {
	case model.PhaseQueued:
		timeoutsTotal.WithLabelValues(timeoutClassStart).Inc()
		e.logger.Warn("start timeout", "request_id", id)
		e.finishLocked(r, model.PhaseTimedOut, "", model.Usage{}, func(s Sink) {
			s.Fail(ErrStartTimeout)
		})
	case model.PhaseStarted, model.PhaseStreaming:
		if r.Mode != model.ModeBuffered {
			return
		}
		timeoutsTotal.WithLabelValues(timeoutClassStart).Inc()
		if r.contentChars > 0 {
			// Partial output exists; return it rather than discard it.
			e.logger.Warn("worker silent mid-accumulation, resolving partial content",
				"request_id", id, "chars", r.contentChars)
			e.finishLocked(r, model.PhaseTimedOut, model.FinishReasonStop, model.Usage{}, func(s Sink) {
				s.Close(model.FinishReasonStop, model.Usage{})
			})
			return
		}
		e.logger.Warn("start timeout after correlation", "request_id", id)
		e.finishLocked(r, model.PhaseTimedOut, "", model.Usage{}, func(s Sink) {
			s.Fail(ErrStartTimeout)
		})
	}
}

// onIdleTimeout fires when a correlated streaming request stalls.
func (e *Engine) onIdleTimeout(id string, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.requests[id]
	if r == nil || r.timerSeq != seq {
		return
	}
	if r.Phase != model.PhaseStarted && r.Phase != model.PhaseStreaming {
		return
	}

	timeoutsTotal.WithLabelValues(timeoutClassIdle).Inc()
	e.logger.Warn("idle timeout", "request_id", id, "chars", r.contentChars)
	e.finishLocked(r, model.PhaseTimedOut, "", model.Usage{}, func(s Sink) {
		s.Fail(ErrIdleTimeout)
	})
}

// onCompletionTimeout fires when usage never follows done. The worker has
// already produced the full text, so this degrades to a best-effort close
// with zeroed usage instead of failing the request.
func (e *Engine) onCompletionTimeout(id string, seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.requests[id]
	if r == nil || r.timerSeq != seq {
		return
	}
	if r.Phase != model.PhaseCompleting {
		return
	}

	timeoutsTotal.WithLabelValues(timeoutClassCompletion).Inc()
	e.logger.Warn("completion timeout, closing with zeroed usage", "request_id", id)
	e.finishLocked(r, model.PhaseTimedOut, model.FinishReasonStop, model.Usage{}, func(s Sink) {
		s.Close(model.FinishReasonStop, model.Usage{})
	})
}
