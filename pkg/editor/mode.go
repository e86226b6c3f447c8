package editor

// Mode is the editor's current interaction mode. Drawing and Editing never
// overlap.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModeEditing
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeDrawing:
		return "drawing"
	case ModeEditing:
		return "editing"
	default:
		return "unknown"
	}
}
