package renderers

import "context"

const fallbackNotice = "This question type is not fully supported yet. You can still answer with text or by picking an option below."

// fallbackRenderer is the catch-all capture surface for unrecognized
// question types. It must still allow a best-effort text or selection
// response rather than blocking the learner.
type fallbackRenderer struct {
	base
}

func newFallbackRenderer(b base) *fallbackRenderer {
	return &fallbackRenderer{base: b}
}

func (r *fallbackRenderer) Activate(ctx context.Context) error {
	r.active = true
	r.logger.Warn("no renderer matches question type, using fallback",
		"input_type", r.question.QuestionType.InputType,
		"response_type", string(r.question.QuestionType.ResponseType))
	return nil
}

func (r *fallbackRenderer) Apply(ctx context.Context, ev InputEvent) error {
	if !r.active {
		return ErrNotActive
	}
	switch ev.Action {
	case ActionText:
		r.store.SetText(ev.Text)
		return nil
	case ActionSelect:
		r.store.SelectOne(ev.OptionID)
		return nil
	default:
		return r.unsupported(ev)
	}
}

func (r *fallbackRenderer) View(ctx context.Context) *View {
	v := r.baseView(r.kind)
	v.Media = r.resolveMedia(ctx)
	v.Notice = fallbackNotice

	if len(r.question.Options) > 0 {
		selected := make(map[uint]bool)
		for _, id := range r.store.Draft().SelectedOptionIDs {
			selected[id] = true
		}
		for _, o := range r.question.Options {
			v.Options = append(v.Options, OptionView{ID: o.ID, Text: o.Text, Selected: selected[o.ID]})
		}
	}

	// Raw question-type metadata is a diagnostic affordance, gated
	// behind developer mode rather than always shown.
	if r.deps.Diagnostics {
		qt := r.question.QuestionType
		diag := map[string]any{
			"question_type_id": qt.ID,
			"input_type":       qt.InputType,
			"response_type":    string(qt.ResponseType),
		}
		if qt.UIComponent != nil {
			diag["ui_component"] = *qt.UIComponent
		}
		v.Diagnostics = diag
	}
	return v
}

func (r *fallbackRenderer) Teardown() {
	r.active = false
}
