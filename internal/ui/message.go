package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/tasks"
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
	MsgTick MsgKind = iota
	MsgCreditsFetched
	MsgAlbumFetched
	MsgProgressUpdate
	MsgRerollComplete
	MsgImagesSaved
)

type creditsResult struct {
	credits int
	err     error
}

type albumResult struct {
	themes []models.AlbumTheme
	err    error
}

type rerollResult struct {
	result *tasks.RerollResult
	err    error
}

type savedResult struct {
	paths []string
	err   error
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// creditsFetchedMsg is the constructor for [MsgCreditsFetched]
func creditsFetchedMsg(credits int, err error) Msg {
	return Msg{kind: MsgCreditsFetched, data: creditsResult{credits, err}}
}

// albumFetchedMsg is the constructor for [MsgAlbumFetched]
func albumFetchedMsg(themes []models.AlbumTheme, err error) Msg {
	return Msg{kind: MsgAlbumFetched, data: albumResult{themes, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// rerollCompleteMsg is the constructor for [MsgRerollComplete]
func rerollCompleteMsg(result *tasks.RerollResult, err error) Msg {
	return Msg{kind: MsgRerollComplete, data: rerollResult{result, err}}
}

// imagesSavedMsg is the constructor for [MsgImagesSaved]
func imagesSavedMsg(paths []string, err error) Msg {
	return Msg{kind: MsgImagesSaved, data: savedResult{paths, err}}
}
