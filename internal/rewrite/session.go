package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"cracksql/internal/masker"
	"cracksql/internal/matcher"
	"cracksql/internal/syntax"
)

// session is the state of one Translate call.
type session struct {
	engine *Engine
	tree   *syntax.Tree
	forest *matcher.Forest
	// hints collects the failures of each piece, handed to the oracle on
	// the next attempt.
	hints map[matcher.PieceID][]string
	// seen maps every statement rendered after a substitution to the
	// piece whose rewrite produced it.
	seen map[string]matcher.PieceID
	// last is the most recently spliced piece.
	last matcher.PieceID
	done bool

	log    logrus.FieldLogger
	result *Result
}

func (s *session) enter(st State) {
	s.result.States = append(s.result.States, st)
	s.log.WithField("state", st).Debug("rewrite state")
}

func (s *session) run(ctx context.Context) {
	cfg := s.engine.opts.Config

	s.enter(StateMatching)
	s.forest = matcher.MatchAll(s.tree, s.engine.opts.Catalog)
	pending := s.forest.MarkCompatible(s.engine.opts.TargetCatalog)
	s.log.WithFields(logrus.Fields{
		"pieces":  s.forest.Len(),
		"pending": pending,
	}).Debug("pieces matched")
	if pending == 0 {
		s.succeed()
		return
	}

	for !s.done {
		if err := ctx.Err(); err != nil {
			s.fail(fmt.Sprintf("rewrite stopped after %d oracle calls: %v", s.result.Iterations, err))
			return
		}
		next := s.forest.Next()
		if next == matcher.NoPiece {
			s.verify(ctx)
			continue
		}
		if s.result.Iterations >= cfg.MaxIterations {
			s.fail(fmt.Sprintf("iteration limit of %d oracle calls reached", cfg.MaxIterations))
			return
		}
		s.rewrite(ctx, next)
	}
}

// rewrite asks the oracle for piece id and splices the answer in.
func (s *session) rewrite(ctx context.Context, id matcher.PieceID) {
	s.enter(StateAwaitingRewrite)
	p := s.forest.Piece(id)
	log := s.log.WithField("piece", p.Keyword())

	m := masker.Mask(s.forest, id, s.engine.classify)
	hints := append([]string(nil), s.hints[id]...)
	req := Request{
		Keyword:      p.Keyword(),
		Snippet:      m.Text,
		Description:  s.describe(p),
		Detail:       p.Detail,
		Source:       s.engine.opts.Source,
		Target:       s.engine.opts.Target,
		Placeholders: m.Names,
		Hints:        hints,
	}
	s.result.Iterations++
	answer, err := s.engine.opts.Oracle.TranslateSnippet(ctx, req)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = ErrUnsupportedByOracle.New(p.Keyword())
	}

	ex := Exchange{Piece: p.Keyword(), Snippet: m.Text, Hints: hints}
	if err != nil {
		ex.Error = err.Error()
		s.result.Exchanges = append(s.result.Exchanges, ex)
		log.WithError(err).Debug("oracle gave no rewrite")
		if ctx.Err() != nil {
			return
		}
		s.failure(id, err.Error())
		return
	}

	s.enter(StateSubstituting)
	text := masker.Expand(s.tree, answer, m.Placeholders)
	leaf := s.tree.AddGenerated(text)
	t, err := s.forest.Splice(id, leaf)
	if err != nil {
		s.fail(err.Error())
		return
	}
	s.hints[t.ID] = s.hints[id]
	s.last = t.ID

	rendered := s.tree.String()
	ex.Answer = answer
	ex.Rendered = rendered
	s.result.Exchanges = append(s.result.Exchanges, ex)
	log.WithField("rewrite", text).Debug("piece rewritten")

	by, ok := s.seen[rendered]
	switch {
	case !ok:
		s.seen[rendered] = id
	case by == id:
		// The piece gave back an answer it already tried; charge it without
		// verifying the same statement again.
		log.Debug("rewrite repeats an earlier attempt")
		s.failure(t.ID, "the rewrite repeats an earlier attempt that was rejected")
	default:
		s.fail("cycle detected: statement rendered to a text seen before")
	}
}

// describe joins the description of a piece with those of the pieces it
// absorbed through lifts.
func (s *session) describe(p *matcher.Piece) string {
	var b strings.Builder
	b.WriteString(p.Description)
	for _, id := range p.TrackPieces {
		q := s.forest.Piece(id)
		if q.Entry == nil || q.Description == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", q.Keyword(), q.Description)
	}
	return b.String()
}

// verify checks the whole statement against the target dialect once no
// piece is pending.
func (s *session) verify(ctx context.Context) {
	s.enter(StateVerifying)
	sql := s.tree.String()
	err := s.check(ctx, sql)
	if err == nil {
		s.succeed()
		return
	}
	if ctx.Err() != nil {
		return
	}
	id := s.locate(err, sql)
	s.log.WithError(err).WithField("piece", s.keyword(id)).Debug("verification failed")
	s.failure(id, err.Error())
}

func (s *session) check(ctx context.Context, sql string) error {
	if _, err := s.engine.opts.TargetParser.Parse(sql); err != nil {
		return err
	}
	if s.engine.opts.Config.Execute && s.engine.opts.Executor != nil {
		return s.engine.opts.Executor.Execute(ctx, sql)
	}
	return nil
}

// locate finds the piece an error blames. Without a usable position, or
// when the position falls outside every piece, the latest rewrite is
// blamed.
func (s *session) locate(err error, sql string) matcher.PieceID {
	fallback := s.forest.Root
	if s.last != matcher.NoPiece && s.forest.Active(s.last) {
		fallback = s.last
	}

	loc, ok := s.engine.opts.Locator.Locate(err)
	if !ok {
		return fallback
	}
	off := loc.ByteOffset(sql)
	if off < 0 {
		return fallback
	}
	_, spans := s.tree.Layout(s.tree.Root)
	leaf, ok := leafAt(spans, off)
	if !ok {
		return fallback
	}
	if owner := s.forest.Owner(leaf); owner != s.forest.Root {
		return owner
	}
	return fallback
}

// leafAt returns the terminal covering off, or the first one after it.
func leafAt(spans []syntax.Span, off int) (syntax.NodeID, bool) {
	if len(spans) == 0 {
		return syntax.NoNode, false
	}
	for _, sp := range spans {
		if off < sp.End {
			return sp.Node, true
		}
	}
	return spans[len(spans)-1].Node, true
}

// failure charges piece id with a failed attempt and decides between a
// retry and a lift.
func (s *session) failure(id matcher.PieceID, reason string) {
	cfg := s.engine.opts.Config
	p := s.forest.Piece(id)
	p.RetryCount++
	s.hints[id] = append(s.hints[id], reason)

	if p.RetryCount <= cfg.MaxRetry {
		switch {
		case p.Kind == matcher.KindTranslated:
			orig, err := s.forest.Revert(id)
			if err != nil {
				s.fail(err.Error())
				return
			}
			orig.RetryCount = p.RetryCount
			s.hints[orig.ID] = s.hints[id]
		case p.State == matcher.Compatible:
			p.State = matcher.Pending
		}
		return
	}

	s.log.WithField("piece", s.keyword(id)).Info(ErrRetryBudgetExceeded.New(s.keyword(id), p.RetryCount).Error())
	s.lift(id)
}

// lift moves the target from piece id to its father, putting back the
// father's original subtree.
func (s *session) lift(id matcher.PieceID) {
	p := s.forest.Piece(id)
	if !s.engine.opts.Config.LiftEnabled || p.Father == matcher.NoPiece {
		s.fail(fmt.Sprintf("%s exceeded %d retries", s.keyword(id), s.engine.opts.Config.MaxRetry))
		return
	}

	s.enter(StateLifting)
	pre := s.tree.Render(p.Node)
	from := s.keyword(id)
	father := p.Father

	if err := s.forest.Restore(father); err != nil {
		s.fail(err.Error())
		return
	}
	f := s.forest.Piece(father)
	if n := len(s.hints[id]); n > 0 {
		s.hints[father] = append(s.hints[father], s.hints[id][n-1])
	}

	lift := Lift{
		PreExpr:    pre,
		LiftExpr:   s.tree.Render(f.Node),
		From:       from,
		To:         f.Keyword(),
		Depth:      s.forest.Depth(father),
		RetryCount: f.RetryCount,
	}
	s.result.Lifts = append(s.result.Lifts, lift)
	s.log.WithFields(logrus.Fields{
		"from": lift.From,
		"to":   lift.To,
	}).Info("lifting piece")
}

// keyword names a piece by the construct it came from.
func (s *session) keyword(id matcher.PieceID) string {
	p := s.forest.Piece(id)
	if p.Kind == matcher.KindTranslated && len(p.TrackPieces) > 0 {
		return s.forest.Piece(p.TrackPieces[0]).Keyword()
	}
	return p.Keyword()
}

func (s *session) succeed() {
	s.enter(StateSucceeded)
	s.result.Succeeded = true
	s.result.SQL = s.tree.String()
	s.result.Pieces = s.used()
	s.done = true
}

func (s *session) fail(reason string) {
	s.enter(StateFailedTerminal)
	s.result.SQL = CannotTranslate
	s.result.Reason = reason
	s.result.Pieces = s.used()
	s.done = true
	s.log.WithField("reason", reason).Warn("statement cannot be translated")
}

// used lists the translated pieces left in the statement.
func (s *session) used() []UsedPiece {
	if s.forest == nil {
		return nil
	}
	var out []UsedPiece
	for _, p := range s.forest.Pieces() {
		if p.Kind != matcher.KindTranslated || !s.forest.Active(p.ID) {
			continue
		}
		orig := s.forest.Piece(p.TrackPieces[0])
		out = append(out, UsedPiece{
			Keyword: orig.Keyword(),
			Kind:    orig.Kind.String(),
			Source:  s.tree.Render(orig.Node),
			Target:  s.tree.Render(p.Node),
		})
	}
	return out
}
