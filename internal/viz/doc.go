// Package viz renders the particle field in the terminal.
//
// The live view is a Bubble Tea program. Every tick it steps the
// [particles.Animator] with the latest tension, projects the render buffer
// through an orbiting [Camera] onto a braille [Canvas] and colors it with the
// blended particle color. A side panel shows the connection state, the
// active shape and color, a spring-smoothed tension gauge and a short
// tension history.
//
// # Key Bindings
//
//	Space - Start/stop camera and connection
//	1-6   - Select shape
//	c/C   - Next/previous color
//	x/y/z - Rotate camera (shift reverses)
//	+/-   - Zoom
//	a     - Toggle auto-rotate
//	t     - Cycle panel themes
//	g     - Toggle GIF recording
//	?     - Show help overlay
//
// # Recording
//
// GIF recordings are written to [Options].GIFDir when recording stops.
package viz
