package tools

import "fmt"

// Result is the uniform outcome shape of every capability invocation.
// Capabilities report failure through it instead of returning a Go error;
// errors are reserved for process-boundary problems.
type Result struct {
	Success bool
	Output  string
	Error   string
}

func Ok(output string) Result {
	return Result{Success: true, Output: output}
}

func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Typed argument payloads, one per action kind. The executor resolves step
// parameters into these before dispatch.

type ReadFileArgs struct {
	Filepath string
}

type WriteFileArgs struct {
	Filepath string
	Content  string
}

type ShellArgs struct {
	Command string
}

type CompleteArgs struct {
	FinalSummary string
}

// Runner bundles the sandboxed capabilities the executor dispatches into.
type Runner struct {
	Files *Filesystem
	Shell *Shell
}

func NewRunner(files *Filesystem, shell *Shell) *Runner {
	return &Runner{Files: files, Shell: shell}
}

// Complete has no side effect; it just captures the planner-declared
// success narrative for the goal.
func (r *Runner) Complete(args CompleteArgs) Result {
	if args.FinalSummary == "" {
		return Fail("final_summary is empty")
	}
	return Ok(args.FinalSummary)
}
