// Package control wires the capture loop, the inference session and the
// particle animator into one start/stop unit.
//
// The [Controller] owns the shared state of a visualization:
//
//   - the tension cell, written only by the session's setTension callback
//   - the active template and color, set from user input
//   - the connection, started and stopped as a whole
//
// # Usage
//
//	c := control.New(control.Options{Source: src, Transport: tr, Animator: anim})
//	if err := c.Start(ctx); err != nil {
//	    // camera or connection failed; nothing is left running
//	}
//	defer c.Stop()
//
// Stop cancels the capture ticker first, then disconnects without waiting for
// the remote side, then releases the camera.
package control
