// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one search at a time:
//  1. [QueryView] : Type a free-text request ("rainy day jazz")
//  2. [SearchView] : Watch suggestion, catalog search and lookup progress
//  3. [ResultView] : Browse resolved tracks and open them or their previews in the browser
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the aggregation engine, providing non-blocking status reporting during searches.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, p, esc, /, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
