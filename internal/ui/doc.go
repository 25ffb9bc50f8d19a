// Package ui implements the interactive session panel using bubbletea's Elm architecture.
//
// The panel has three views, cycled with tab:
//  1. [StatusView] : connection state, idle countdown and protection notices
//  2. [TransfersView] : the transfer board as a list
//  3. [SettingsView] : idle timeout editing
//
// [DialogView] confirms a disconnect.
//
// Every key press, mouse click, and focus change is reported to the session as a signal tagged with the surface
// of the current view. The session decides which of them count as activity; settings edits never do.
//
// Status snapshots, session events, and board progress arrive as Msg values read from channels, so the model never
// blocks on the session.
package ui
