// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for inspecting the sync engine:
//  1. [QueueView] : Browse the pending operation queue in drain order
//  2. [DeadLetterView] : Browse operations dropped after exhausting retries
//  3. [DetailView] : Inspect one operation's payload and metadata
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Sync status updates flow through a channel fed by the engine's status
// subscription, so the header reflects drains triggered outside the TUI.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab, s, r, q)
// with contextual help displayed via charmbracelet/bubbles/help.
package ui
