package tools

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// Shell executes commands through bash in the project root, guarded by a
// deny-list of destructive and escalation patterns.
type Shell struct {
	WorkDir      string
	DenyPatterns []*regexp.Regexp
}

// DefaultDenyPatterns blocks deletion, privilege escalation, disk and
// network mutation, process termination, and remote version-control
// traffic.
func DefaultDenyPatterns() []*regexp.Regexp {
	raw := []string{
		`\brm\s+(-\w*\s+)*`,
		`\brmdir\b`,
		`\bmkfs\b`,
		`\bdd\s+if=`,
		`\bfdisk\b`,
		`\bsudo\b`,
		`\bsu\s`,
		`\bchown\b`,
		`\bshutdown\b`,
		`\breboot\b`,
		`\bkill(all)?\b`,
		`\bpkill\b`,
		`\biptables\b`,
		`\bifconfig\b.*\bdown\b`,
		`\bgit\s+(push|pull|fetch)\b`,
		`\bcurl\b.*\|\s*(ba)?sh`,
		`>\s*/dev/sd`,
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, r := range raw {
		patterns = append(patterns, regexp.MustCompile(r))
	}
	return patterns
}

func NewShell(workDir string) *Shell {
	return &Shell{
		WorkDir:      workDir,
		DenyPatterns: DefaultDenyPatterns(),
	}
}

func (s *Shell) Run(ctx context.Context, args ShellArgs) Result {
	if strings.TrimSpace(args.Command) == "" {
		return Fail("command is empty")
	}
	for _, re := range s.DenyPatterns {
		if re.MatchString(args.Command) {
			return Fail("command blocked by safety policy (matched %s)", re.String())
		}
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", args.Command)
	cmd.Dir = s.WorkDir

	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if text == "" {
		text = "(no output)"
	}
	if err != nil {
		return Fail("command failed: %v\noutput: %s", err, text)
	}
	return Ok(text)
}
