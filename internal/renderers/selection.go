package renderers

import (
	"context"
	"sort"

	"github.com/prepstation/capture-service/internal/models"
)

// selectionRenderer captures single- and multi-choice answers.
type selectionRenderer struct {
	base
	multi bool
}

func (r *selectionRenderer) Activate(ctx context.Context) error {
	r.active = true
	return nil
}

func (r *selectionRenderer) Apply(ctx context.Context, ev InputEvent) error {
	if !r.active {
		return ErrNotActive
	}
	switch ev.Action {
	case ActionSelect:
		if r.multi {
			r.store.Toggle(ev.OptionID)
		} else {
			r.store.SelectOne(ev.OptionID)
		}
		return nil
	case ActionToggle:
		if !r.multi {
			return r.unsupported(ev)
		}
		r.store.Toggle(ev.OptionID)
		return nil
	default:
		return r.unsupported(ev)
	}
}

func (r *selectionRenderer) View(ctx context.Context) *View {
	v := r.baseView(r.kind)
	v.Media = r.resolveMedia(ctx)
	v.Options = r.optionViews()
	return v
}

func (r *selectionRenderer) optionViews() []OptionView {
	selected := make(map[uint]bool)
	for _, id := range r.store.Draft().SelectedOptionIDs {
		selected[id] = true
	}

	opts := make([]OptionView, 0, len(r.question.Options))

	options := append([]models.Option(nil), r.question.Options...)
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].DisplayOrder < options[j].DisplayOrder
	})
	for _, o := range options {
		opts = append(opts, OptionView{
			ID:       o.ID,
			Text:     o.Text,
			Selected: selected[o.ID],
		})
	}
	return opts
}

func (r *selectionRenderer) Teardown() {
	r.active = false
}
