package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stigoleg/nudge/internal/cli"
)

// gen-docs writes shell completions and a roff man page generated from the
// nudge command tree, so both stay in step with --help.

const homepage = "https://github.com/stigoleg/nudge"

func main() {
	root := cli.NewRootCmd("docs")
	if err := writeCompletions(root, filepath.Join("docs", "completions")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := writeMan(root, "man"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func writeCompletions(root *cobra.Command, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := root.Name()
	gens := []struct {
		file string
		gen  func(string) error
	}{
		{name + ".bash", func(p string) error { return root.GenBashCompletionFileV2(p, true) }},
		{"_" + name, root.GenZshCompletionFile},
		{name + ".fish", func(p string) error { return root.GenFishCompletionFile(p, true) }},
		{name + ".ps1", root.GenPowerShellCompletionFileWithDesc},
	}
	for _, g := range gens {
		if err := g.gen(filepath.Join(dir, g.file)); err != nil {
			return fmt.Errorf("%s: %w", g.file, err)
		}
	}
	return nil
}

func writeMan(root *cobra.Command, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, root.Name()+".1"), []byte(manPage(root)), 0o644)
}

func manPage(root *cobra.Command) string {
	var b strings.Builder
	name := root.Name()

	fmt.Fprintf(&b, ".TH %q \"1\" \"\" \"nudge\" \"User Commands\"\n", strings.ToUpper(name))
	fmt.Fprintf(&b, ".SH NAME\n%s \\- %s\n", name, roff(root.Short))
	fmt.Fprintf(&b, ".SH SYNOPSIS\n.B %s\n[OPTIONS] [COMMAND]\n", name)
	fmt.Fprintf(&b, ".SH DESCRIPTION\n%s\n", roff(root.Long))

	b.WriteString(".SH OPTIONS\n")
	writeFlags(&b, root.NonInheritedFlags())

	b.WriteString(".SH COMMANDS\n")
	for _, c := range root.Commands() {
		if !c.IsAvailableCommand() {
			continue
		}
		fmt.Fprintf(&b, ".TP\n\\fB%s %s\\fR\n%s\n", name, c.Name(), roff(c.Short))
		writeFlags(&b, c.NonInheritedFlags())
	}

	if root.Example != "" {
		b.WriteString(".SH EXAMPLES\n.nf\n")
		b.WriteString(roff(root.Example))
		b.WriteString("\n.fi\n")
	}
	fmt.Fprintf(&b, ".SH SEE ALSO\nProject homepage: %s\n", homepage)
	return b.String()
}

func writeFlags(b *strings.Builder, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		names := "\\-\\-" + f.Name
		if f.Shorthand != "" {
			names = "\\-" + f.Shorthand + ", " + names
		}
		if typ, _ := pflag.UnquoteUsage(f); typ != "" {
			names += " " + typ
		}
		usage := f.Usage
		if f.DefValue != "" && f.DefValue != "false" {
			usage += fmt.Sprintf(" (default %q)", f.DefValue)
		}
		fmt.Fprintf(b, ".TP\n\\fB%s\\fR\n%s\n", names, roff(usage))
	})
}

// roff escapes backslashes and leading dots.
func roff(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\e")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, ".") || strings.HasPrefix(l, "'") {
			lines[i] = "\\&" + l
		}
	}
	return strings.Join(lines, "\n")
}
