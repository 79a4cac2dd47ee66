// Package backtrace turns shadow-stack records into call frames.
//
// Frames lists calls most recent first. Augment adds, per frame, the stack
// words between the frame's stack pointer and that of the call it made,
// annotated with the register that last stored each word.
package backtrace
