// Package skill installs the short Markdown description that teaches an
// AI coding assistant the git-surgeon command surface.
package skill

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Platform is an assistant whose skill directory layout we know.
type Platform int

const (
	// Claude installs under ~/.claude/skills/.
	Claude Platform = iota
	// OpenCode installs under ~/.config/opencode/skills/.
	OpenCode
	// Codex installs under ~/.codex/skills/.
	Codex
)

// Name is the platform's display name.
func (p Platform) Name() string {
	switch p {
	case OpenCode:
		return "OpenCode"
	case Codex:
		return "Codex"
	default:
		return "Claude Code"
	}
}

// dir is the platform's skill directory relative to the home directory.
func (p Platform) dir(home string) string {
	switch p {
	case OpenCode:
		return filepath.Join(home, ".config", "opencode", "skills", "git-surgeon")
	case Codex:
		return filepath.Join(home, ".codex", "skills", "git-surgeon")
	default:
		return filepath.Join(home, ".claude", "skills", "git-surgeon")
	}
}

// skillContent summarizes the command surface. The full teaching material
// ships separately; this file only has to make the tool discoverable.
const skillContent = `---
name: git-surgeon
description: Hunk-level git staging and history surgery by stable hunk ID.
---

# git-surgeon

List every hunk in a diff with a stable content-derived ID, then stage,
unstage, discard, commit, or rewrite history with selected hunks.

## Commands

- git-surgeon hunks [--staged] [--file <path>] [--commit <ref>] [--full] [--blame]
- git-surgeon show <id> [--commit <ref>] [--blame]
- git-surgeon stage <id>[:<start>-<end>,...] ... [--lines <ranges>]
- git-surgeon unstage <id>... / discard <id>...
- git-surgeon commit <id>... -m <msg> [-m <body>]
- git-surgeon fixup <commit> / reword <commit> -m <msg>
- git-surgeon squash <commit> -m <msg> [--force] [--no-preserve-author]
- git-surgeon undo <id>... --from <commit> / undo-file <path>... --from <commit>
- git-surgeon split <commit> --pick <ids...> -m <msg> [...] [--rest-message <msg>]

Line ranges are 1-based over the numbering printed by show.
`

// Install writes SKILL.md into each platform's skill directory, echoing
// one line per installation to out.
func Install(platforms []Platform, out io.Writer) error {
	if len(platforms) == 0 {
		return fmt.Errorf("at least one platform flag is required (--claude, --opencode, --codex)")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not determine home directory: %w", err)
	}
	for _, p := range platforms {
		dir := p.dir(home)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		path := filepath.Join(dir, "SKILL.md")
		if err := os.WriteFile(path, []byte(skillContent), 0644); err != nil {
			return err
		}
		fmt.Fprintf(out, "installed %s skill to %s\n", p.Name(), path)
	}
	return nil
}
