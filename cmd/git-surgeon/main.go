// Command git-surgeon exposes every hunk in a git diff as an addressable
// unit with a stable content-derived ID, so non-interactive callers can
// stage, unstage, discard, commit, or rewrite history hunk by hunk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/git-surgeon/git-surgeon/internal/executor"
	"github.com/git-surgeon/git-surgeon/internal/gitproc"
	"github.com/git-surgeon/git-surgeon/internal/orchestrator"
	"github.com/git-surgeon/git-surgeon/internal/selection"
	"github.com/git-surgeon/git-surgeon/internal/skill"
	"github.com/git-surgeon/git-surgeon/internal/surgeonerr"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: git-surgeon <verb> [arguments]\n\n")
	fmt.Fprintf(os.Stderr, "Verbs:\n")
	fmt.Fprintf(os.Stderr, "  hunks      [--staged] [--file <path>] [--commit <ref>] [--full] [--blame]\n")
	fmt.Fprintf(os.Stderr, "  show       <id> [--commit <ref>] [--blame]\n")
	fmt.Fprintf(os.Stderr, "  stage      <id>[:<ranges>]... [--lines <ranges>]\n")
	fmt.Fprintf(os.Stderr, "  unstage    <id>[:<ranges>]... [--lines <ranges>]\n")
	fmt.Fprintf(os.Stderr, "  discard    <id>[:<ranges>]... [--lines <ranges>]\n")
	fmt.Fprintf(os.Stderr, "  commit     <id>[:<ranges>]... -m <msg> [-m <body>]\n")
	fmt.Fprintf(os.Stderr, "  fixup      <commit>\n")
	fmt.Fprintf(os.Stderr, "  reword     <commit> -m <msg> [-m <body>]\n")
	fmt.Fprintf(os.Stderr, "  squash     <commit> -m <msg> [--force] [--no-preserve-author]\n")
	fmt.Fprintf(os.Stderr, "  undo       <id>... --from <commit>\n")
	fmt.Fprintf(os.Stderr, "  undo-file  <path>... --from <commit>\n")
	fmt.Fprintf(os.Stderr, "  split      <commit> --pick <id>... -m <msg> [--pick ...] [--rest-message <msg>]\n")
	fmt.Fprintf(os.Stderr, "  install-skill [--claude] [--opencode] [--codex]\n\n")
	fmt.Fprintf(os.Stderr, "Ranges are 1-based inclusive line numbers over the numbering printed by show,\n")
	fmt.Fprintf(os.Stderr, "e.g. stage a1b2c3d:1-5,9\n")
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}
	verb, rest := args[0], args[1:]
	ctx := context.Background()

	// The shim verbs run inside git's rebase machinery and must not touch
	// the repository themselves.
	switch verb {
	case "help", "-h", "--help":
		usage()
		return 0
	case orchestrator.SequenceEditVerb:
		return runSequenceEdit(rest)
	case orchestrator.CommitMessageVerb:
		return runCommitMessage(rest)
	case "install-skill":
		return report(runInstallSkill(rest))
	}

	if err := checkGit(ctx); err != nil {
		return report(err)
	}
	root, err := gitproc.RepoRoot(ctx, "")
	if err != nil {
		return report(err)
	}
	exec := executor.New(gitproc.New(root), os.Stdout, os.Stderr)

	switch verb {
	case "hunks":
		err = runHunks(ctx, exec, rest)
	case "show":
		err = runShow(ctx, exec, rest)
	case "stage":
		err = runApply(ctx, exec, executor.VerbStage, rest)
	case "unstage":
		err = runApply(ctx, exec, executor.VerbUnstage, rest)
	case "discard":
		err = runApply(ctx, exec, executor.VerbDiscard, rest)
	case "undo":
		err = runUndo(ctx, exec, rest)
	case "undo-file":
		err = runUndoFile(ctx, exec, rest)
	case "commit", "fixup", "reword", "squash", "split":
		err = runOrchestrated(ctx, exec, verb, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown verb %q\n\n", verb)
		usage()
		return 1
	}
	return report(err)
}

// report prints err and maps it to the process exit code.
func report(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var serr *surgeonerr.Error
	if errors.As(err, &serr) {
		return serr.Category.ExitCode()
	}
	return 1
}

// checkGit verifies the git binary is reachable before any other work.
func checkGit(ctx context.Context) error {
	if _, err := gitproc.New("").Run(ctx, "version"); err != nil {
		return surgeonerr.Wrap(surgeonerr.CategoryEnvironment, "git command not found", err)
	}
	return nil
}

// multiFlag collects a repeatable string flag (-m, --pick).
type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint([]string(*m)) }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// parseInterspersed drives fs over args until every token is consumed,
// collecting non-flag tokens as positionals. The flag package stops at the
// first positional; re-parsing the remainder lets flags follow positionals
// the way the documented grammar writes them (stage <id> --lines 1-5).
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	return positional, nil
}

func newFlagSet(verb string) *flag.FlagSet {
	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func runHunks(ctx context.Context, exec *executor.Executor, args []string) error {
	fs := newFlagSet("hunks")
	staged := fs.Bool("staged", false, "read from the index instead of the worktree")
	file := fs.String("file", "", "restrict to one path")
	commit := fs.String("commit", "", "read from a commit instead of the worktree")
	full := fs.Bool("full", false, "render every line numbered")
	useBlame := fs.Bool("blame", false, "prefix lines with the short SHA that introduced them")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) > 0 {
		return badUsage("hunks takes no positional arguments, got %q", positional[0])
	}
	if *staged && *commit != "" {
		return badUsage("--staged and --commit are mutually exclusive")
	}
	opts := executor.ListOptions{
		Source: executor.Source{Kind: executor.SourceWorktree},
		File:   *file,
		Full:   *full,
		Blame:  *useBlame,
	}
	if *staged {
		opts.Source.Kind = executor.SourceIndex
	}
	if *commit != "" {
		opts.Source = executor.Source{Kind: executor.SourceCommit, Commit: *commit}
	}
	return exec.ListHunks(ctx, opts)
}

func runShow(ctx context.Context, exec *executor.Executor, args []string) error {
	fs := newFlagSet("show")
	commit := fs.String("commit", "", "read the hunk from a commit")
	useBlame := fs.Bool("blame", false, "annotate lines with originating short SHAs")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return badUsage("show takes exactly one hunk ID")
	}
	return exec.Show(ctx, positional[0], *commit, *useBlame)
}

func runApply(ctx context.Context, exec *executor.Executor, verb executor.Verb, args []string) error {
	fs := newFlagSet(verb.Name)
	lines := fs.String("lines", "", "line ranges when a single ID is given, e.g. 1-5,9")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	refs, err := parseRefs(verb.Name, positional, *lines)
	if err != nil {
		return err
	}
	return exec.Apply(ctx, verb, refs)
}

func runUndo(ctx context.Context, exec *executor.Executor, args []string) error {
	fs := newFlagSet("undo")
	from := fs.String("from", "", "commit to undo hunks from (required)")
	lines := fs.String("lines", "", "line ranges when a single ID is given")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if *from == "" {
		return badUsage("undo requires --from <commit>")
	}
	refs, err := parseRefs("undo", positional, *lines)
	if err != nil {
		return err
	}
	return exec.Undo(ctx, refs, *from)
}

func runUndoFile(ctx context.Context, exec *executor.Executor, args []string) error {
	fs := newFlagSet("undo-file")
	from := fs.String("from", "", "commit to undo files from (required)")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if *from == "" {
		return badUsage("undo-file requires --from <commit>")
	}
	if len(positional) == 0 {
		return badUsage("undo-file requires at least one path")
	}
	return exec.UndoFiles(ctx, positional, *from)
}

func runOrchestrated(ctx context.Context, exec *executor.Executor, verb string, args []string) error {
	shim, err := os.Executable()
	if err != nil {
		return surgeonerr.Wrap(surgeonerr.CategoryEnvironment, "cannot locate own executable for rebase editor shims", err)
	}
	orch := orchestrator.New(exec, os.Stderr, shim)

	switch verb {
	case "commit":
		fs := newFlagSet("commit")
		var messages multiFlag
		fs.Var(&messages, "m", "commit message (repeatable; values joined by a blank line)")
		lines := fs.String("lines", "", "line ranges when a single ID is given")
		positional, err := parseInterspersed(fs, args)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			return badUsage("commit requires -m <message>")
		}
		refs, err := parseRefs("commit", positional, *lines)
		if err != nil {
			return err
		}
		return orch.Commit(ctx, refs, messages)

	case "fixup":
		fs := newFlagSet("fixup")
		positional, err := parseInterspersed(fs, args)
		if err != nil {
			return err
		}
		if len(positional) != 1 {
			return badUsage("fixup takes exactly one commit")
		}
		return orch.Fixup(ctx, positional[0])

	case "reword":
		fs := newFlagSet("reword")
		var messages multiFlag
		fs.Var(&messages, "m", "new commit message (repeatable)")
		positional, err := parseInterspersed(fs, args)
		if err != nil {
			return err
		}
		if len(positional) != 1 {
			return badUsage("reword takes exactly one commit")
		}
		if len(messages) == 0 {
			return badUsage("reword requires -m <message>")
		}
		return orch.Reword(ctx, positional[0], messages)

	case "squash":
		fs := newFlagSet("squash")
		var messages multiFlag
		fs.Var(&messages, "m", "squashed commit message (repeatable)")
		force := fs.Bool("force", false, "allow merge commits in the squashed range")
		noPreserve := fs.Bool("no-preserve-author", false, "do not carry the oldest commit's author and date")
		positional, err := parseInterspersed(fs, args)
		if err != nil {
			return err
		}
		if len(positional) != 1 {
			return badUsage("squash takes exactly one target commit")
		}
		if len(messages) == 0 {
			return badUsage("squash requires -m <message>")
		}
		return orch.Squash(ctx, positional[0], messages, *force, !*noPreserve)

	case "split":
		commit, groups, restMessages, err := parseSplitArgs(args)
		if err != nil {
			return err
		}
		return orch.Split(ctx, commit, groups, restMessages)
	}
	return surgeonerr.Bug("unhandled orchestrated verb " + verb)
}

// parseRefs turns positional hunk references into selection refs. A --lines
// value is only meaningful when exactly one bare ID was given.
func parseRefs(verb string, positional []string, lines string) ([]selection.Ref, error) {
	if len(positional) == 0 {
		return nil, badUsage("%s requires at least one hunk ID (run 'git-surgeon hunks')", verb)
	}
	refs := make([]selection.Ref, 0, len(positional))
	for _, p := range positional {
		ref, err := selection.ParseRef(p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if lines != "" {
		if len(refs) != 1 {
			return nil, badUsage("--lines requires exactly one hunk ID")
		}
		if len(refs[0].Ranges) > 0 {
			return nil, badUsage("--lines cannot be combined with an <id>:<range> reference")
		}
		ranges, err := selection.ParseRanges(lines)
		if err != nil {
			return nil, err
		}
		refs[0].Ranges = ranges
	}
	return refs, nil
}

// parseSplitArgs hand-parses the split grammar, which interleaves repeated
// --pick groups with their -m messages in a way the flag package cannot
// express: split <commit> --pick <id>... -m <msg> [--pick ...] --rest-message <msg>.
// A -m before the first --pick is an error; IDs listed after a group's -m
// still belong to that group until the next --pick.
func parseSplitArgs(args []string) (commit string, groups []orchestrator.PickGroup, restMessages []string, err error) {
	var current *orchestrator.PickGroup
	i := 0
	next := func(flagName string) (string, error) {
		i++
		if i >= len(args) {
			return "", badUsage("%s requires a value", flagName)
		}
		return args[i], nil
	}
	for ; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--pick", "-pick":
			groups = append(groups, orchestrator.PickGroup{})
			current = &groups[len(groups)-1]
		case "-m", "--m":
			v, err := next("-m")
			if err != nil {
				return "", nil, nil, err
			}
			if current == nil {
				return "", nil, nil, badUsage("-m before the first --pick; each message belongs to a pick group")
			}
			current.Messages = append(current.Messages, v)
		case "--rest-message", "-rest-message":
			v, err := next("--rest-message")
			if err != nil {
				return "", nil, nil, err
			}
			restMessages = append(restMessages, v)
		default:
			if commit == "" && current == nil {
				commit = arg
				continue
			}
			if current == nil {
				return "", nil, nil, badUsage("unexpected argument %q before the first --pick", arg)
			}
			ref, err := selection.ParseRef(arg)
			if err != nil {
				return "", nil, nil, err
			}
			current.Refs = append(current.Refs, ref)
		}
	}
	if commit == "" {
		return "", nil, nil, badUsage("split requires a commit")
	}
	if len(groups) == 0 {
		return "", nil, nil, badUsage("split requires at least one --pick group")
	}
	for n, g := range groups {
		if len(g.Refs) == 0 {
			return "", nil, nil, badUsage("--pick group %d names no hunks", n+1)
		}
		if len(g.Messages) == 0 {
			return "", nil, nil, badUsage("--pick group %d has no -m message", n+1)
		}
	}
	return commit, groups, restMessages, nil
}

func runInstallSkill(args []string) error {
	fs := newFlagSet("install-skill")
	claude := fs.Bool("claude", false, "install the Claude Code skill")
	opencode := fs.Bool("opencode", false, "install the OpenCode skill")
	codex := fs.Bool("codex", false, "install the Codex skill")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var platforms []skill.Platform
	if *claude {
		platforms = append(platforms, skill.Claude)
	}
	if *opencode {
		platforms = append(platforms, skill.OpenCode)
	}
	if *codex {
		platforms = append(platforms, skill.Codex)
	}
	if len(platforms) == 0 {
		platforms = []skill.Platform{skill.Claude}
	}
	return skill.Install(platforms, os.Stdout)
}

// runSequenceEdit is the GIT_SEQUENCE_EDITOR shim: git hands it the rebase
// todo path; the action and target commit arrive through the environment.
func runSequenceEdit(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "sequence-edit shim expects the todo file path")
		return 1
	}
	action := os.Getenv(orchestrator.EnvSequenceAction)
	commit := os.Getenv(orchestrator.EnvSequenceCommit)
	if action == "" || commit == "" {
		fmt.Fprintln(os.Stderr, "sequence-edit shim invoked without action environment")
		return 1
	}
	if err := orchestrator.RewriteSequenceTodo(args[0], action, commit); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runCommitMessage is the GIT_EDITOR shim: it overwrites the message file
// git opened with the message prepared by the parent invocation.
func runCommitMessage(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "commit-msg shim expects the message file path")
		return 1
	}
	msg := os.Getenv(orchestrator.EnvCommitMessage)
	if msg == "" {
		fmt.Fprintln(os.Stderr, "commit-msg shim invoked without a prepared message")
		return 1
	}
	if err := orchestrator.WriteCommitMessage(args[0], msg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func badUsage(format string, args ...any) *surgeonerr.Error {
	return surgeonerr.New(surgeonerr.CategoryResolution, fmt.Sprintf(format, args...))
}
