package recovery

import "fmt"

// Strategy decides what the parser does when it meets damaged input.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Location identifies where in the file a problem was found.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

func (l Location) String() string {
	if l.ObjectNum > 0 {
		return fmt.Sprintf("%s: object %d %d (offset %d)", l.Component, l.ObjectNum, l.ObjectGen, l.ByteOffset)
	}
	return fmt.Sprintf("%s: offset %d", l.Component, l.ByteOffset)
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Continue reports whether the caller may keep going after a.
func (a Action) Continue() bool { return a != ActionFail }

type Context interface{ Done() <-chan struct{} }
