// Package session wires the builder, codec, merger, and renderer behind
// the four host callbacks a dynamic-instrumentation engine drives a
// CFGTrace plugin with: BeginIteration, OnInstruction, OnBranch, and
// EndIteration.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hoenirvili/CFGTrace/internal/cfg"
	"github.com/hoenirvili/CFGTrace/internal/dotrender"
	"github.com/hoenirvili/CFGTrace/internal/instr"
	"github.com/hoenirvili/CFGTrace/internal/log"
	"github.com/hoenirvili/CFGTrace/internal/render"
	"github.com/hoenirvili/CFGTrace/internal/sharedmem"
)

// Session carries one iteration's builder state and the collaborators
// needed to close it out: a shared-memory window to merge through and an
// optional renderer to invoke. Not safe for concurrent calls — the host
// serializes BeginIteration/OnInstruction/OnBranch/EndIteration onto one
// thread, and Session makes the same assumption.
type Session struct {
	builder  *cfg.Builder
	window   *sharedmem.Window
	renderer *dotrender.Renderer
	log      *log.Logger
}

// New returns a Session bound to window (the shared-memory CFG window,
// may be nil if the host has none yet) and an optional renderer (nil
// disables EndIteration's dot invocation — it still returns the rendered
// document text).
func New(window *sharedmem.Window, renderer *dotrender.Renderer, logger *log.Logger) *Session {
	return &Session{window: window, renderer: renderer, log: logger}
}

// BeginIteration starts a fresh builder for the given iteration index.
func (s *Session) BeginIteration(iteration uint64) {
	s.builder = cfg.NewBuilder(iteration)
	if s.log != nil {
		s.log.Info("iteration begin", "iteration", iteration)
	}
}

// OnInstruction routes a non-branch instruction into the current block.
func (s *Session) OnInstruction(inst instr.Instruction) error {
	return s.builder.AppendInstruction(inst)
}

// OnBranch routes a branch instruction into the current block, closing it
// and materializing successor placeholders.
func (s *Session) OnBranch(inst instr.Instruction) error {
	return s.builder.AppendBranchInstruction(inst)
}

// errNoPriorGraph marks the "nothing to merge yet" case: an all-zero or
// otherwise empty window, distinct from a genuine decode failure.
var errNoPriorGraph = errors.New("session: no prior graph in window")

// Result is what EndIteration hands back to the host: the rendered
// document (always produced when the window step doesn't fail outright),
// and, optionally, the path to a rendered image, a non-fatal renderer
// error, and a non-fatal merge-step error.
type Result struct {
	Document  string
	ImagePath string
	RenderErr error
	MergeErr  error
}

// EndIteration decodes the shared-memory window's prior graph (if any),
// merges it with the current iteration's graph, re-encodes the merged
// graph back into the window, and renders it. Neither a corrupt prior
// window nor a merge inconsistency aborts the iteration: both are fatal
// to the merge step only. The in-memory current graph is preserved and
// still serialized/rendered, and the error is surfaced through
// Result.MergeErr instead of being swallowed. A renderer failure is
// likewise non-fatal and reported via Result.RenderErr rather than the
// returned error — the graph itself is still valid and already committed
// to the window.
func (s *Session) EndIteration(ctx context.Context, imageFormat string) (Result, error) {
	current := s.builder.Graph
	var mergeErr error

	if s.window != nil {
		window := s.window.CFG()
		prior, _, err := tryDecode(window)
		switch {
		case err == nil:
			if err := cfg.Merge(current, prior); err != nil {
				mergeErr = fmt.Errorf("session: merge: %w", err)
				if s.log != nil {
					s.log.Warn("merge reported inconsistencies", "error", err)
				}
			}
		case errors.Is(err, errNoPriorGraph):
			// nothing to merge yet, not an error.
		default:
			mergeErr = fmt.Errorf("session: decode prior window: %w", err)
			if s.log != nil {
				s.log.Error("corrupt prior window, skipping merge", "error", err)
			}
		}

		if !current.Fits(s.window.Capacity()) {
			return Result{}, fmt.Errorf("session: merged graph of %d bytes exceeds window capacity %d",
				current.MemSize(), s.window.Capacity())
		}
		if _, err := current.Serialize(window); err != nil {
			return Result{}, fmt.Errorf("session: re-encode merged graph: %w", err)
		}
	}

	doc := render.Render(current)
	result := Result{Document: doc, MergeErr: mergeErr}

	if s.renderer != nil && imageFormat != "" {
		path, err := s.renderer.Render(ctx, doc, imageFormat)
		if err != nil {
			result.RenderErr = err
		} else {
			result.ImagePath = path
		}
	}

	if s.log != nil {
		s.log.Info("iteration end", "nodes", len(current.Nodes), "image", result.ImagePath)
	}
	return result, nil
}

// tryDecode attempts to decode a graph from window. An all-zero or
// otherwise empty window (the common case on the very first iteration)
// reports errNoPriorGraph, which the caller treats as "nothing to merge
// yet" rather than a real corrupt_buffer failure.
func tryDecode(window []byte) (*cfg.Graph, int, error) {
	if len(window) == 0 {
		return nil, 0, errNoPriorGraph
	}
	g, n, err := cfg.Deserialize(window)
	if err != nil {
		return nil, 0, err
	}
	if len(g.Nodes) == 0 {
		return nil, 0, errNoPriorGraph
	}
	return g, n, nil
}
