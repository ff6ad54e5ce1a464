// Package segment cuts node text into pedagogically sized chunks. Boundary
// candidates are sentence gaps only; a weighted sum of surprisal, margin and
// dissimilarity decides the cut, then a constraint pass enforces the word
// bounds. The whole pipeline is deterministic for a fixed backend, so running
// it twice on the same text yields byte-identical segments.
package segment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

type Deps struct {
	Log     *logger.Logger
	Signals SignalBackend
}

type Input struct {
	Text     string
	Roots    []*domain.StructureNode
	Tunables domain.Tunables
	// CreateCheckpoints marks natural pause points for tutoring playback.
	CreateCheckpoints bool
}

// Segment cuts every leaf node's span. When Roots is empty the whole text is
// treated as one implicit node with an empty NodeID.
func Segment(ctx context.Context, deps Deps, in Input) ([]domain.Segment, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("segment: missing logger")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("segment: empty text")
	}
	backend := deps.Signals
	if backend == nil {
		backend = NewLexicalBackend()
	}
	tun := in.Tunables
	if tun.SegmentMinWords <= 0 {
		tun = domain.DefaultTunables()
	}

	type leaf struct {
		nodeID string
		span   domain.Span
	}
	var leaves []leaf
	for _, r := range in.Roots {
		r.Walk(func(n *domain.StructureNode, _ int) {
			if len(n.Children) == 0 {
				leaves = append(leaves, leaf{nodeID: n.ID, span: n.Span})
			}
		})
	}
	if len(leaves) == 0 {
		leaves = append(leaves, leaf{span: domain.Span{Start: 0, End: len(in.Text)}})
	}

	var out []domain.Segment
	ordinal := 0
	for _, lf := range leaves {
		if lf.span.Len() <= 0 {
			continue
		}
		segs, err := segmentSpan(ctx, backend, in.Text, lf.nodeID, lf.span, tun)
		if err != nil {
			return nil, err
		}
		for i := range segs {
			segs[i].Ordinal = ordinal
			ordinal++
		}
		out = append(out, segs...)
	}

	for i := range out {
		classify(&out[i], tun)
		if in.CreateCheckpoints {
			markCheckpoint(&out[i])
		}
	}
	return out, nil
}

func segmentSpan(ctx context.Context, backend SignalBackend, text, nodeID string, span domain.Span, tun domain.Tunables) ([]domain.Segment, error) {
	body := text[span.Start:span.End]
	sentences := textutil.SplitSentences(body)
	if len(sentences) == 0 {
		return nil, nil
	}
	for i := range sentences {
		sentences[i].Start += span.Start
		sentences[i].End += span.Start
	}

	signals, err := backend.Score(ctx, sentences, text)
	if err != nil {
		return nil, fmt.Errorf("segment: score boundaries: %w", err)
	}

	w := tun.BoundaryWeights
	scores := make([]float64, len(signals))
	for i, s := range signals {
		scores[i] = w.Surprisal*s.Surprisal + w.Margin*s.Margin + w.Similarity*(1-s.Similarity)
	}

	cuts := chooseCuts(sentences, scores, signals, tun)

	var segs []domain.Segment
	startIdx := 0
	emit := func(endIdx int, cutScore float64, sig *BoundarySignals) {
		first, last := sentences[startIdx], sentences[endIdx-1]
		seg := domain.Segment{
			ID:                 uuid.NewString(),
			NodeID:             nodeID,
			Text:               strings.TrimSpace(text[first.Start:last.End]),
			Span:               domain.Span{Start: first.Start, End: last.End},
			BoundaryConfidence: cutScore,
		}
		seg.WordCount = textutil.WordCount(seg.Text)
		seg.Oversized = seg.WordCount > tun.SegmentMaxWords
		if sig != nil {
			seg.BoundarySignals = map[string]float64{
				"surprisal":  sig.Surprisal,
				"margin":     sig.Margin,
				"similarity": sig.Similarity,
			}
		}
		segs = append(segs, seg)
		startIdx = endIdx
	}

	for _, c := range cuts {
		var sig *BoundarySignals
		score := 1.0
		if c.gap >= 0 && c.gap < len(signals) {
			sig = &signals[c.gap]
			score = scores[c.gap]
		}
		emit(c.gap+1, score, sig)
	}
	if startIdx < len(sentences) {
		emit(len(sentences), 1.0, nil)
	}

	return resplitOversized(mergeShort(segs, tun), text, tun), nil
}

type cut struct{ gap int }

// chooseCuts walks sentence gaps accumulating words and cuts when the
// boundary score clears the threshold with the minimum met, when the gap is
// a hard discourse break (paragraph boundary), or when adding the next
// sentence would blow past the maximum. A single sentence longer than the
// maximum is emitted alone and later flagged Oversized rather than cut
// mid-sentence.
func chooseCuts(sentences []textutil.Sentence, scores []float64, signals []BoundarySignals, tun domain.Tunables) []cut {
	var cuts []cut
	words := 0
	bestGap, bestScore := -1, -1.0
	for i, s := range sentences {
		words += textutil.WordCount(s.Text)
		if i >= len(scores) {
			break
		}
		if words >= tun.SegmentMinWords && scores[i] > bestScore {
			bestGap, bestScore = i, scores[i]
		}
		hardBreak := signals[i].Margin >= 0.7
		nextWords := textutil.WordCount(sentences[i+1].Text)
		switch {
		case words >= tun.SegmentMinWords && (scores[i] >= tun.BoundaryThreshold || hardBreak):
			cuts = append(cuts, cut{gap: i})
			words, bestGap, bestScore = 0, -1, -1.0
		case words+nextWords > tun.SegmentMaxWords:
			// Forced cut: prefer the best-scoring gap seen since the last
			// cut, falling back to here.
			g := i
			if bestGap >= 0 {
				g = bestGap
			}
			cuts = append(cuts, cut{gap: g})
			if g < i {
				// Recount the words carried past the chosen gap.
				words = 0
				for j := g + 1; j <= i; j++ {
					words += textutil.WordCount(sentences[j].Text)
				}
			} else {
				words = 0
			}
			bestGap, bestScore = -1, -1.0
		}
	}
	return cuts
}

// mergeShort folds an undersized trailing segment into its predecessor, and
// any other undersized segment into whichever neighbor keeps the pair closer
// to the target.
func mergeShort(segs []domain.Segment, tun domain.Tunables) []domain.Segment {
	if len(segs) < 2 {
		return segs
	}
	for i := 0; i < len(segs); {
		if segs[i].WordCount >= tun.SegmentMinWords {
			i++
			continue
		}
		var into int
		switch {
		case i == 0:
			into = 0 // merge forward: absorb segs[1]
		case i == len(segs)-1:
			into = i - 1
		default:
			// Prefer the neighbor that stays nearer the target after merging.
			left := segs[i-1].WordCount + segs[i].WordCount
			right := segs[i].WordCount + segs[i+1].WordCount
			if absInt(left-tun.SegmentTargetWords) <= absInt(right-tun.SegmentTargetWords) {
				into = i - 1
			} else {
				into = i
			}
		}
		a, b := into, into+1
		segs[a].Text = segs[a].Text + " " + segs[b].Text
		segs[a].Span.End = segs[b].Span.End
		segs[a].WordCount += segs[b].WordCount
		segs[a].BoundaryConfidence = segs[b].BoundaryConfidence
		segs[a].BoundarySignals = segs[b].BoundarySignals
		segs[a].Oversized = segs[a].WordCount > tun.SegmentMaxWords
		segs = append(segs[:b], segs[b+1:]...)
		if i > 0 {
			i--
		}
	}
	return segs
}

// resplitOversized cuts any over-max multi-sentence segment (the merge pass
// can produce one) back under the bound at sentence gaps. Only a single
// sentence longer than the maximum keeps the Oversized flag.
func resplitOversized(segs []domain.Segment, text string, tun domain.Tunables) []domain.Segment {
	out := make([]domain.Segment, 0, len(segs))
	for _, seg := range segs {
		if !seg.Oversized {
			out = append(out, seg)
			continue
		}
		sentences := textutil.SplitSentences(text[seg.Span.Start:seg.Span.End])
		if len(sentences) < 2 {
			out = append(out, seg)
			continue
		}
		for i := range sentences {
			sentences[i].Start += seg.Span.Start
			sentences[i].End += seg.Span.Start
		}
		start, words := 0, 0
		emit := func(end int) {
			first, last := sentences[start], sentences[end-1]
			piece := domain.Segment{
				ID:                 uuid.NewString(),
				NodeID:             seg.NodeID,
				Text:               strings.TrimSpace(text[first.Start:last.End]),
				Span:               domain.Span{Start: first.Start, End: last.End},
				BoundaryConfidence: seg.BoundaryConfidence,
				BoundarySignals:    seg.BoundarySignals,
			}
			piece.WordCount = textutil.WordCount(piece.Text)
			piece.Oversized = piece.WordCount > tun.SegmentMaxWords
			out = append(out, piece)
			start, words = end, 0
		}
		for i, s := range sentences {
			wc := textutil.WordCount(s.Text)
			if words > 0 && words+wc > tun.SegmentMaxWords {
				emit(i)
			}
			words += wc
		}
		if start < len(sentences) {
			emit(len(sentences))
		}
	}
	return out
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
