package reveal

import "strings"

// Key codes understood by HandleKey.
const (
	KeySpace       = "Space"
	KeyEnter       = "Enter"
	KeyNumpadEnter = "NumpadEnter"
	KeyArrowLeft   = "ArrowLeft"
	KeyArrowRight  = "ArrowRight"
	KeyR           = "KeyR"
)

// KeyEvent is a key press on the study view.
type KeyEvent struct {
	Code        string
	Ctrl        bool
	Meta        bool
	InTextInput bool
}

// Action is the outcome of a key press. ActionNext and ActionPrevious are
// navigation requests for the caller; the other actions have already been
// applied to the engine.
type Action int

const (
	ActionNone Action = iota
	ActionRevealed
	ActionAnswerShown
	ActionNext
	ActionPrevious
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionRevealed:
		return "revealed"
	case ActionAnswerShown:
		return "answer_shown"
	case ActionNext:
		return "next"
	case ActionPrevious:
		return "previous"
	case ActionReset:
		return "reset"
	default:
		return "none"
	}
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseKey accepts key codes and a few common aliases ("space", "enter",
// "left", "right", "r") case-insensitively.
func ParseKey(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "space", " ":
		return KeySpace
	case "enter", "return":
		return KeyEnter
	case "numpadenter":
		return KeyNumpadEnter
	case "arrowleft", "left":
		return KeyArrowLeft
	case "arrowright", "right":
		return KeyArrowRight
	case "keyr", "r":
		return KeyR
	}
	return key
}

// HandleKey applies a key press to the displayed card.
//
// Space and Enter reveal the lowest unrevealed cloze group. When none remain,
// a basic or occlusion card shows its answer once; a basic card whose answer is
// only a citation skips straight to the next card. Anything else requests the
// next card. The arrow keys request navigation, Ctrl+R or Cmd+R resets the
// card. Keys typed into a text input are ignored.
func (e *Engine) HandleKey(ev KeyEvent) Action {
	if ev.InTextInput {
		return ActionNone
	}
	switch ParseKey(ev.Code) {
	case KeySpace, KeyEnter, KeyNumpadEnter:
		return e.advance()
	case KeyArrowLeft:
		return ActionPrevious
	case KeyArrowRight:
		return ActionNext
	case KeyR:
		if ev.Ctrl || ev.Meta {
			e.Reset()
			return ActionReset
		}
	}
	return ActionNone
}

func (e *Engine) advance() Action {
	if e.kind == KindCloze {
		if i, ok := e.NextUnrevealed(); ok {
			e.Toggle(i)
			return ActionRevealed
		}
		return ActionNext
	}
	if !e.AnswerShown() && strings.TrimSpace(e.card.Answer) != "" {
		if e.kind == KindBasic && !e.card.HasAnswerContent() {
			return ActionNext
		}
		e.ToggleAnswer()
		return ActionAnswerShown
	}
	return ActionNext
}
