// Package process supervises the external audio player subprocess.
//
// The child runs in its own process group so it can be signaled
// independently of the daemon. Shutdown is terminate-then-wait-then-kill:
// SIGTERM, a 5 second grace window, then SIGKILL with a secondary timeout
// guarding against unreapable children. Child stdout/stderr are streamed
// into the logging system line by line, and the stderr tail is retained
// so a failed exit can report what the player last said.
package process
