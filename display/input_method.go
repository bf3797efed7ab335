package display

// InputMethod holds the text being composed for the focused window.
type InputMethod struct {
	composition string

	// OnCommit receives text once a composition is committed.
	OnCommit func(text string)
}

// SetComposition replaces the text being composed.
func (im *InputMethod) SetComposition(text string) {
	im.composition = text
}

// Composition returns the text being composed.
func (im *InputMethod) Composition() string {
	return im.composition
}

// Composing reports whether a composition is in progress.
func (im *InputMethod) Composing() bool {
	return im.composition != ""
}

// Commit ends the composition and returns its text.
func (im *InputMethod) Commit() string {
	text := im.composition
	im.composition = ""
	if text != "" && im.OnCommit != nil {
		im.OnCommit(text)
	}
	return text
}

// Cancel drops the composition without committing it.
func (im *InputMethod) Cancel() {
	im.composition = ""
}

// InputMethodFilter owns the composition state of a Connection.
type InputMethodFilter struct {
	method *InputMethod
}

// NewInputMethodFilter creates a filter with an empty composition.
func NewInputMethodFilter() *InputMethodFilter {
	return &InputMethodFilter{method: &InputMethod{}}
}

// InputMethod returns the filter's input method, nil once destroyed.
func (f *InputMethodFilter) InputMethod() *InputMethod {
	return f.method
}

func (f *InputMethodFilter) destroy() {
	if f.method != nil {
		f.method.Cancel()
		f.method = nil
	}
}
