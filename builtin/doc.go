// Package builtin provides concrete tools: echo, read_file, write_file,
// list_dir and run_command.
//
// File tools resolve paths against a workspace root and refuse paths that
// escape it. run_command starts the process with the attempt's context, so a
// timeout or cancellation kills the subprocess.
//
// Expected failures such as a missing file, a bad parameter or a non-zero
// exit code are returned as failed outcomes. Only failures to start a process
// are returned as errors.
package builtin
