package tools

import "golang.org/x/mobile/event/key"

// Action is a transport or editing command bound to a key.
type Action int

const (
	ActionNone Action = iota
	ActionUndo
	ActionTogglePlay
	ActionSeekBack
	ActionSeekForward
	// ActionToggleBefore and ActionToggleAfter play or pause one channel.
	ActionToggleBefore
	ActionToggleAfter
	ActionSlower
	ActionFaster
)

func (a Action) String() string {
	switch a {
	case ActionUndo:
		return "undo"
	case ActionTogglePlay:
		return "toggle-play"
	case ActionSeekBack:
		return "seek-back"
	case ActionSeekForward:
		return "seek-forward"
	case ActionToggleBefore:
		return "toggle-before"
	case ActionToggleAfter:
		return "toggle-after"
	case ActionSlower:
		return "slower"
	case ActionFaster:
		return "faster"
	}
	return "none"
}

// Keymap translates key presses into actions. While TextFocus is set every
// key is left to the focused input.
type Keymap struct {
	TextFocus bool
}

// Action returns the action bound to e, or ActionNone.
func (k Keymap) Action(e key.Event) Action {
	if k.TextFocus || e.Direction == key.DirRelease {
		return ActionNone
	}
	if e.Modifiers&(key.ModControl|key.ModAlt|key.ModMeta) != 0 {
		return ActionNone
	}
	switch e.Code {
	case key.CodeEscape, key.CodeDeleteBackspace, key.CodeDeleteForward:
		return ActionUndo
	case key.CodeSpacebar:
		return ActionTogglePlay
	case key.CodeLeftArrow:
		return ActionSeekBack
	case key.CodeRightArrow:
		return ActionSeekForward
	case key.CodeHyphenMinus, key.CodeKeypadHyphenMinus:
		return ActionSlower
	case key.CodeEqualSign, key.CodeKeypadPlusSign:
		return ActionFaster
	}
	if e.Modifiers&key.ModShift != 0 {
		switch e.Code {
		case key.Code1:
			return ActionToggleBefore
		case key.Code2:
			return ActionToggleAfter
		}
	}
	return ActionNone
}
