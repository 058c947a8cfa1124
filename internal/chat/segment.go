package chat

import (
	"regexp"
	"strings"
	"time"
)

const (
	// segmentMaxLen is the length above which a paragraph is re-packed into
	// sentence groups.
	segmentMaxLen = 350

	// segmentDelayBase / segmentDelayPerChar / segmentDelayCap model reading
	// time between consecutive segments of one reply.
	segmentDelayBase    = 250 * time.Millisecond
	segmentDelayPerChar = 8 * time.Millisecond
	segmentDelayCap     = 900 * time.Millisecond
)

var (
	blankLineRE = regexp.MustCompile(`\n[ \t]*\n+`)
	sentenceRE  = regexp.MustCompile(`[^.!?]*[.!?]+[ \t]*|[^.!?]+$`)
	httpLinkRE  = regexp.MustCompile(`https?://`)
)

// SplitSegments splits one assistant reply into display segments.
//
// The reply is first split on blank-line boundaries. Oversized paragraphs are
// further split on sentence boundaries and greedily re-packed under
// segmentMaxLen, except when the paragraph contains a link marker: a markdown
// link or a raw URL is never broken across segments.
func SplitSegments(text string) []string {
	var segments []string
	for _, chunk := range blankLineRE.Split(text, -1) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if runeLen(chunk) <= segmentMaxLen || containsLinkMarker(chunk) {
			segments = append(segments, chunk)
			continue
		}
		segments = append(segments, packSentences(chunk)...)
	}
	return segments
}

func containsLinkMarker(chunk string) bool {
	return strings.Contains(chunk, "[") || httpLinkRE.MatchString(chunk)
}

// packSentences splits chunk on sentence boundaries and greedily re-packs the
// sentences into groups not exceeding segmentMaxLen. A chunk that yields a
// single sentence is kept whole.
func packSentences(chunk string) []string {
	var sentences []string
	for _, s := range sentenceRE.FindAllString(chunk, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) <= 1 {
		return []string{chunk}
	}

	var packed []string
	current := ""
	for _, s := range sentences {
		switch {
		case current == "":
			current = s
		case runeLen(current)+1+runeLen(s) <= segmentMaxLen:
			current += " " + s
		default:
			packed = append(packed, current)
			current = s
		}
	}
	if current != "" {
		packed = append(packed, current)
	}
	return packed
}

// segmentDelay returns the pause before the segment after this one appears.
func segmentDelay(segment string) time.Duration {
	proportional := time.Duration(runeLen(segment)) * segmentDelayPerChar
	if proportional > segmentDelayCap {
		proportional = segmentDelayCap
	}
	return segmentDelayBase + proportional
}

func runeLen(s string) int {
	return len([]rune(s))
}

// assistantReply is one raw agent reply before segmentation.
type assistantReply struct {
	text      string
	directive Directive
	debug     any
}

// queuedSegment is one display segment with its pre-assigned message id.
type queuedSegment struct {
	id        string
	text      string
	directive Directive
	debug     any
}

// segmentQueue serializes the appearance of a reply's segments.
//
// enqueue may be called again while a drain is in flight; the new segments
// are simply appended and observed by the single running drain loop. The
// directive (and debug payload) of a reply ride only on its final segment so
// downstream directive scans fire once per logical reply.
type segmentQueue struct {
	schedule func(time.Duration, func())
	deliver  func(queuedSegment)

	items    []queuedSegment
	draining bool
}

func (q *segmentQueue) enqueue(reply assistantReply) {
	segments := SplitSegments(reply.text)
	if len(segments) == 0 {
		if reply.directive == nil && reply.debug == nil {
			return
		}
		segments = []string{strings.TrimSpace(reply.text)}
	}
	for i, text := range segments {
		item := queuedSegment{id: newMessageID(), text: text}
		if i == len(segments)-1 {
			item.directive = reply.directive
			item.debug = reply.debug
		}
		q.items = append(q.items, item)
	}
	if !q.draining {
		q.draining = true
		q.drainNext()
	}
}

// drainNext pops one segment, delivers it, and reschedules itself while more
// segments remain. It always runs on the controller's dispatch goroutine.
func (q *segmentQueue) drainNext() {
	if len(q.items) == 0 {
		q.draining = false
		return
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.deliver(item)

	if len(q.items) == 0 {
		q.draining = false
		return
	}
	q.schedule(segmentDelay(item.text), q.drainNext)
}
