package grammar

import (
	"path/filepath"
	"strings"
)

// BlockPair is a block comment delimiter pair, e.g. /* and */.
type BlockPair struct {
	Open  string
	Close string
}

// Grammar describes the comment syntax of a language family. One grammar
// typically serves many extensions (the whole C family shares one entry).
type Grammar struct {
	Name         string
	LinePrefixes []string
	BlockPairs   []BlockPair
}

// HasBlocks reports whether the grammar defines any block comment form.
func (g *Grammar) HasBlocks() bool {
	return len(g.BlockPairs) > 0
}

var (
	cFamily = &Grammar{
		Name:         "c-family",
		LinePrefixes: []string{"//"},
		BlockPairs:   []BlockPair{{Open: "/*", Close: "*/"}},
	}
	hashOnly = &Grammar{
		Name:         "hash",
		LinePrefixes: []string{"#"},
	}
	pythonGrammar = &Grammar{
		Name:         "python",
		LinePrefixes: []string{"#"},
		BlockPairs:   []BlockPair{{Open: `"""`, Close: `"""`}, {Open: "'''", Close: "'''"}},
	}
	rubyGrammar = &Grammar{
		Name:         "ruby",
		LinePrefixes: []string{"#"},
		BlockPairs:   []BlockPair{{Open: "=begin", Close: "=end"}},
	}
	sqlGrammar = &Grammar{
		Name:         "sql",
		LinePrefixes: []string{"--"},
		BlockPairs:   []BlockPair{{Open: "/*", Close: "*/"}},
	}
	haskellGrammar = &Grammar{
		Name:         "haskell",
		LinePrefixes: []string{"--"},
		BlockPairs:   []BlockPair{{Open: "{-", Close: "-}"}},
	}
	luaGrammar = &Grammar{
		Name:         "lua",
		LinePrefixes: []string{"--"},
		BlockPairs:   []BlockPair{{Open: "--[[", Close: "]]"}},
	}
	lispGrammar = &Grammar{
		Name:         "lisp",
		LinePrefixes: []string{";"},
	}
	erlangGrammar = &Grammar{
		Name:         "erlang",
		LinePrefixes: []string{"%"},
	}
	texGrammar = &Grammar{
		Name:         "tex",
		LinePrefixes: []string{"%"},
	}
	matlabGrammar = &Grammar{
		Name:         "matlab",
		LinePrefixes: []string{"%"},
		BlockPairs:   []BlockPair{{Open: "%{", Close: "%}"}},
	}
	markupGrammar = &Grammar{
		Name:       "markup",
		BlockPairs: []BlockPair{{Open: "<!--", Close: "-->"}},
	}
	cssGrammar = &Grammar{
		Name:       "css",
		BlockPairs: []BlockPair{{Open: "/*", Close: "*/"}},
	}
	powershellGrammar = &Grammar{
		Name:         "powershell",
		LinePrefixes: []string{"#"},
		BlockPairs:   []BlockPair{{Open: "<#", Close: "#>"}},
	}
	vbGrammar = &Grammar{
		Name:         "visual-basic",
		LinePrefixes: []string{"'"},
	}
	fortranGrammar = &Grammar{
		Name:         "fortran",
		LinePrefixes: []string{"!"},
	}
	pascalGrammar = &Grammar{
		Name:         "pascal",
		LinePrefixes: []string{"//"},
		BlockPairs:   []BlockPair{{Open: "{", Close: "}"}, {Open: "(*", Close: "*)"}},
	}
	ocamlGrammar = &Grammar{
		Name:       "ocaml",
		BlockPairs: []BlockPair{{Open: "(*", Close: "*)"}},
	}
	vimGrammar = &Grammar{
		Name:         "vim",
		LinePrefixes: []string{`"`},
	}
	batchGrammar = &Grammar{
		Name:         "batch",
		LinePrefixes: []string{"REM ", "::"},
	}
	iniGrammar = &Grammar{
		Name:         "ini",
		LinePrefixes: []string{";", "#"},
	}
	asmGrammar = &Grammar{
		Name:         "asm",
		LinePrefixes: []string{";", "#"},
	}
)

// byExtension maps a lowercase file extension (dot included) to its grammar.
// Adding a language is a pure-data change here.
var byExtension = map[string]*Grammar{
	// C family and friends
	".c": cFamily, ".h": cFamily, ".cpp": cFamily, ".cc": cFamily,
	".cxx": cFamily, ".hpp": cFamily, ".hh": cFamily,
	".go": cFamily, ".java": cFamily, ".js": cFamily, ".jsx": cFamily,
	".ts": cFamily, ".tsx": cFamily, ".mjs": cFamily, ".cjs": cFamily,
	".cs": cFamily, ".rs": cFamily, ".swift": cFamily, ".kt": cFamily,
	".kts": cFamily, ".scala": cFamily, ".dart": cFamily, ".groovy": cFamily,
	".m": cFamily, ".mm": cFamily, ".php": cFamily, ".zig": cFamily,
	".d": cFamily, ".v": cFamily, ".proto": cFamily,

	// Hash-comment languages
	".sh": hashOnly, ".bash": hashOnly, ".zsh": hashOnly, ".fish": hashOnly,
	".pl": hashOnly, ".pm": hashOnly, ".tcl": hashOnly, ".r": hashOnly,
	".jl": hashOnly, ".cr": hashOnly, ".nim": hashOnly, ".mk": hashOnly,
	".yaml": hashOnly, ".yml": hashOnly, ".toml": hashOnly,
	".dockerfile": hashOnly, ".tf": hashOnly, ".cmake": hashOnly,

	".py":  pythonGrammar,
	".pyi": pythonGrammar,
	".rb":  rubyGrammar,
	".ex":  rubyGrammar, // elixir: # lines, no =begin, but harmless superset
	".exs": rubyGrammar,

	".sql": sqlGrammar,
	".hs":  haskellGrammar,
	".elm": haskellGrammar,
	".lua": luaGrammar,

	".lisp": lispGrammar, ".lsp": lispGrammar, ".cl": lispGrammar,
	".el": lispGrammar, ".clj": lispGrammar, ".cljs": lispGrammar,
	".edn": lispGrammar, ".scm": lispGrammar, ".rkt": lispGrammar,

	".erl": erlangGrammar, ".hrl": erlangGrammar,
	".tex": texGrammar, ".sty": texGrammar,
	".mat": matlabGrammar,

	".html": markupGrammar, ".htm": markupGrammar, ".xml": markupGrammar,
	".xhtml": markupGrammar, ".svg": markupGrammar, ".vue": markupGrammar,
	".md": markupGrammar, ".markdown": markupGrammar,

	".css": cssGrammar, ".scss": cssGrammar, ".less": cssGrammar,

	".ps1": powershellGrammar, ".psm1": powershellGrammar,
	".vb": vbGrammar, ".bas": vbGrammar,
	".f": fortranGrammar, ".f90": fortranGrammar, ".f95": fortranGrammar,
	".pas": pascalGrammar, ".pp": pascalGrammar,
	".ml": ocamlGrammar, ".mli": ocamlGrammar,
	".vim": vimGrammar,
	".bat": batchGrammar, ".cmd": batchGrammar,
	".ini": iniGrammar, ".cfg": iniGrammar, ".conf": iniGrammar,
	".s": asmGrammar, ".asm": asmGrammar,
}

// specialFilenames covers files recognized by name rather than extension.
var specialFilenames = map[string]*Grammar{
	"makefile":   hashOnly,
	"dockerfile": hashOnly,
	"rakefile":   rubyGrammar,
	"gemfile":    rubyGrammar,
}

// ForExtension returns the grammar registered for a file extension.
// The extension is matched case-insensitively and must include the dot.
func ForExtension(ext string) (*Grammar, bool) {
	g, ok := byExtension[strings.ToLower(ext)]
	return g, ok
}

// ForFile returns the grammar for a path, consulting the extension table
// first and falling back to well-known extensionless filenames.
func ForFile(path string) (*Grammar, bool) {
	if ext := filepath.Ext(path); ext != "" {
		if g, ok := ForExtension(ext); ok {
			return g, ok
		}
	}
	g, ok := specialFilenames[strings.ToLower(filepath.Base(path))]
	return g, ok
}

// SupportedExtensions returns every extension the registry knows about.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		exts = append(exts, ext)
	}
	return exts
}
