//go:build !unix

package media

import "os/exec"

// configureProcessGroup keeps the exec.CommandContext default of killing the
// child process only.
func configureProcessGroup(*exec.Cmd) {}
