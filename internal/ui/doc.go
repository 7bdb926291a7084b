// Package ui implements the interactive slot grid using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [GridView] : a 3-column grid of slot cards (theme, phase, size, engine) with the credit balance
//  2. [AlbumView] : the user's saved album themes
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Slot states are read from [tasks.Grid.Snapshot] on a tick. Re-rolls run through the [tasks.GenerationEngine],
// so running slots are stopped and the image cache is cleared before the new job becomes current.
// Progress updates flow through a channel from the engine.
//
// Keys: r re-roll, a album, s save ready images, esc back or dismiss an error, q quit.
package ui
