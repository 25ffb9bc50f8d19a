package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mediasync/internal/session"
	"github.com/desertthunder/mediasync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStatus MsgKind = iota
	MsgEvent
	MsgProgress
	MsgActionDone
)

// statusMsg is the constructor for [MsgStatus]
func statusMsg(s session.Status) Msg {
	return Msg{kind: MsgStatus, data: s}
}

// eventMsg is the constructor for [MsgEvent]
func eventMsg(e session.Event) Msg {
	return Msg{kind: MsgEvent, data: e}
}

// progressMsg is the constructor for [MsgProgress]
func progressMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgress, data: update}
}

type actionResult struct {
	action string
	err    error
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(action string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionResult{action: action, err: err}}
}
