package renderers

import "context"

// textRenderer captures free-text and long-text answers. Every edit
// lands in the draft store immediately; persistence rides the
// debounce.
type textRenderer struct {
	base
	long bool
}

func (r *textRenderer) Activate(ctx context.Context) error {
	r.active = true
	return nil
}

func (r *textRenderer) Apply(ctx context.Context, ev InputEvent) error {
	if !r.active {
		return ErrNotActive
	}
	if ev.Action != ActionText {
		return r.unsupported(ev)
	}
	r.store.SetText(ev.Text)
	return nil
}

func (r *textRenderer) View(ctx context.Context) *View {
	v := r.baseView(r.kind)
	v.Media = r.resolveMedia(ctx)
	return v
}

func (r *textRenderer) Teardown() {
	r.active = false
}
