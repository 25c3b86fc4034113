package renderers

import (
	"context"
	"encoding/json"
	"regexp"
)

// blankMarker matches positional {{blank_id}} markers in question
// content.
var blankMarker = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// blanksRenderer substitutes content markers with discrete input
// slots, each bound to one expected answer.
type blanksRenderer struct {
	base
	segments []ContentSegment
	slots    map[string]BlankSlotMeta
}

// BlankSlotMeta is the per-slot capture constraint surfaced to the
// view.
type BlankSlotMeta struct {
	MaxLength int
}

func newBlanksRenderer(b base) *blanksRenderer {
	r := &blanksRenderer{base: b, slots: make(map[string]BlankSlotMeta)}

	if len(b.question.BlanksConfig) > 0 {
		var cfg struct {
			Blanks []struct {
				ID        string `json:"id"`
				MaxLength int    `json:"max_length"`
			} `json:"blanks"`
		}
		if err := json.Unmarshal(b.question.BlanksConfig, &cfg); err != nil {
			b.logger.Warn("blanks config unreadable, slots carry no constraints", "error", err)
		} else {
			for _, slot := range cfg.Blanks {
				r.slots[slot.ID] = BlankSlotMeta{MaxLength: slot.MaxLength}
			}
		}
	}

	r.segments = parseSegments(b.question.Content, r.slots)
	return r
}

// parseSegments splits content into literal runs and input slots in
// marker order.
func parseSegments(content string, slots map[string]BlankSlotMeta) []ContentSegment {
	var segments []ContentSegment
	last := 0
	for _, m := range blankMarker.FindAllStringSubmatchIndex(content, -1) {
		if m[0] > last {
			segments = append(segments, ContentSegment{Text: content[last:m[0]]})
		}
		id := content[m[2]:m[3]]
		seg := ContentSegment{BlankID: id}
		if meta, ok := slots[id]; ok {
			seg.MaxLength = meta.MaxLength
		}
		segments = append(segments, seg)
		last = m[1]
	}
	if last < len(content) {
		segments = append(segments, ContentSegment{Text: content[last:]})
	}
	return segments
}

func (r *blanksRenderer) Activate(ctx context.Context) error {
	r.active = true
	return nil
}

func (r *blanksRenderer) Apply(ctx context.Context, ev InputEvent) error {
	if !r.active {
		return ErrNotActive
	}
	if ev.Action != ActionBlank {
		return r.unsupported(ev)
	}
	value := ev.Text
	if meta, ok := r.slots[ev.BlankID]; ok && meta.MaxLength > 0 {
		// Truncate by runes so a multi-byte character is never split.
		if runes := []rune(value); len(runes) > meta.MaxLength {
			value = string(runes[:meta.MaxLength])
		}
	}
	r.store.SetBlank(ev.BlankID, value)
	return nil
}

func (r *blanksRenderer) View(ctx context.Context) *View {
	v := r.baseView(r.kind)
	v.Media = r.resolveMedia(ctx)

	answers := r.store.Draft().BlankAnswers
	segs := make([]ContentSegment, len(r.segments))
	copy(segs, r.segments)
	for i := range segs {
		if segs[i].BlankID != "" {
			segs[i].Value = answers[segs[i].BlankID]
		}
	}
	v.Segments = segs
	return v
}

func (r *blanksRenderer) Teardown() {
	r.active = false
}
