package model

// Centralized glyphs for the step viewer
// Using simple single-width characters for consistent terminal rendering
const (
	IconCurrentLine = "▶" // Line about to run / just traced
	IconPointer     = "→" // Variable referencing a heap object
	IconHeap        = "◆" // Heap object
	IconFrame       = "▸" // Stack frame header
	IconChanged     = "*" // Variable changed this step
	IconBlank       = " "
)
