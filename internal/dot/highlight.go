package dot

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	darkmode "github.com/thiagokokada/dark-mode-go"
)

type Theme int

const (
	ThemeAuto Theme = iota
	ThemeLight
	ThemeDark
)

func (t Theme) String() string {
	switch t {
	case ThemeLight:
		return "light"
	case ThemeDark:
		return "dark"
	default:
		return "auto"
	}
}

func ThemeFromString(raw string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ThemeAuto.String():
		return ThemeAuto, nil
	case ThemeLight.String():
		return ThemeLight, nil
	case ThemeDark.String():
		return ThemeDark, nil
	default:
		return ThemeAuto, fmt.Errorf("unknown color mode %q (want auto, light or dark)", raw)
	}
}

var detectDarkMode = darkmode.IsDarkMode

// Lexer tokenizes Graphviz DOT. Chroma ships no DOT lexer, so this one covers
// what Render emits plus comments and bare identifiers.
var Lexer = chroma.MustNewLexer(
	&chroma.Config{
		Name:      "Graphviz",
		Aliases:   []string{"dot", "graphviz", "gv"},
		Filenames: []string{"*.dot", "*.gv"},
		MimeTypes: []string{"text/vnd.graphviz"},
	},
	func() chroma.Rules {
		return chroma.Rules{
			"root": {
				{Pattern: `\s+`, Type: chroma.Whitespace},
				{Pattern: `//[^\n]*`, Type: chroma.CommentSingle},
				{Pattern: `/\*[\s\S]*?\*/`, Type: chroma.CommentMultiline},
				{Pattern: `#[^\n]*`, Type: chroma.CommentPreproc},
				{Pattern: `"(?:\\.|[^"\\])*"`, Type: chroma.LiteralString},
				{Pattern: `->|--`, Type: chroma.Operator},
				{Pattern: chroma.Words(`(?i)\b`, `\b`, "strict", "digraph", "graph", "subgraph", "node", "edge"), Type: chroma.Keyword},
				{Pattern: `[A-Za-z_][A-Za-z0-9_]*(?=\s*=)`, Type: chroma.NameAttribute},
				{Pattern: `[A-Za-z_][A-Za-z0-9_]*`, Type: chroma.NameVariable},
				{Pattern: `-?(?:\.[0-9]+|[0-9]+(?:\.[0-9]*)?)`, Type: chroma.LiteralNumber},
				{Pattern: `[\[\]{};,=:]`, Type: chroma.Punctuation},
				{Pattern: `.`, Type: chroma.Text},
			},
		}
	},
)

// styleForTheme resolves auto against the desktop setting; detection failures
// fall back to the light style.
func styleForTheme(t Theme) *chroma.Style {
	dark := t == ThemeDark
	if t == ThemeAuto && detectDarkMode != nil {
		isDark, err := detectDarkMode()
		if err != nil {
			slog.Debug("detect dark-mode", slog.Any("error", err))
		}
		dark = err == nil && isDark
	}
	name := "github"
	if dark {
		name = "github-dark"
	}
	if st := styles.Get(name); st != nil {
		return st
	}
	return styles.Fallback
}

// Highlight writes src to w with ANSI colors for a 256-color terminal.
func Highlight(w io.Writer, src string, t Theme) error {
	return highlight(w, Lexer, src, t)
}

// HighlightDiff colors a unified diff between two renders.
func HighlightDiff(w io.Writer, diff string, t Theme) error {
	l := lexers.Get("diff")
	if l == nil {
		l = lexers.Fallback
	}
	return highlight(w, l, diff, t)
}

func highlight(w io.Writer, l chroma.Lexer, src string, t Theme) error {
	it, err := chroma.Coalesce(l).Tokenise(nil, src)
	if err != nil {
		return fmt.Errorf("tokenise %s: %w", l.Config().Name, err)
	}
	f := formatters.Get("terminal256")
	if f == nil {
		f = formatters.Fallback
	}
	return f.Format(w, styleForTheme(t), it)
}
