package resolver

import (
	"go.uber.org/zap"
)

// OutcomeKind tags the result of a single extraction strategy.
type OutcomeKind int

const (
	// OutcomeFound means the strategy produced a media URL.
	OutcomeFound OutcomeKind = iota
	// OutcomeNotFound means the strategy ran cleanly but the page had nothing
	// for it. Soft failure; the chain continues.
	OutcomeNotFound
	// OutcomeParseError means the strategy hit malformed data. Also a soft
	// failure: upstream markup drifts, the next strategy may still work.
	OutcomeParseError
)

// Outcome is the tagged result of one extraction attempt.
type Outcome struct {
	Kind OutcomeKind
	URL  string
	Err  error
}

// Found wraps a successfully extracted URL.
func Found(url string) Outcome { return Outcome{Kind: OutcomeFound, URL: url} }

// NotFound reports a clean miss.
func NotFound() Outcome { return Outcome{Kind: OutcomeNotFound} }

// ParseError reports malformed upstream data.
func ParseError(err error) Outcome { return Outcome{Kind: OutcomeParseError, Err: err} }

// Strategy is one named extraction step over an already-fetched page. Keeping
// each strategy behind its own name makes reordering or dropping one a local
// edit when upstream markup changes.
type Strategy struct {
	ID  string
	Run func(page []byte) Outcome
}

// runChain tries strategies strictly in order and stops at the first Found.
// NotFound and ParseError are soft failures. Returns ok=false only when every
// strategy is exhausted.
func runChain(log *zap.SugaredLogger, page []byte, strategies []Strategy) (string, bool) {
	for _, s := range strategies {
		out := s.Run(page)
		switch out.Kind {
		case OutcomeFound:
			log.Debugw("extraction strategy succeeded", "strategy", s.ID)
			return out.URL, true
		case OutcomeParseError:
			log.Debugw("extraction strategy parse error", "strategy", s.ID, "error", out.Err)
		default:
			log.Debugw("extraction strategy found nothing", "strategy", s.ID)
		}
	}
	return "", false
}
