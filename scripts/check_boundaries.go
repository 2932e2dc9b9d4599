package main

import (
	"bufio"
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists what a layer of a ledger module may import besides the
// standard library. Paths starting with "./" are relative to the module
// directory (contexts/<context>/<service>); other entries are import prefixes.
type layerRule struct {
	allowed []string
}

var layerRules = map[string]layerRule{
	"domain": {allowed: []string{
		"./domain",
		"cosmossdk.io/math",
	}},
	"ports": {allowed: []string{
		"./domain",
		"{module}/contracts",
	}},
	"application": {allowed: []string{
		"./application",
		"./domain",
		"./ports",
		"{module}/contracts",
		"github.com/google/uuid",
	}},
	"transport": {allowed: []string{
		"./domain",
		"./transport",
		"github.com/shopspring/decimal",
	}},
}

func main() {
	root := flag.String("root", "contexts", "directory holding bounded contexts")
	flag.Parse()

	modulePath, err := readModulePath("go.mod")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read go.mod: %v\n", err)
		os.Exit(2)
	}

	violations := collectViolations(*root, modulePath)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		return violations[i].Line < violations[j].Line
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func readModulePath(goMod string) (string, error) {
	file, err := os.Open(goMod)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), "\""), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no module directive in %s", goMod)
}

func collectViolations(root string, modulePath string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 {
			return nil
		}
		serviceDir := strings.Join(parts[:3], "/")
		servicePrefix := modulePath + "/" + serviceDir

		violations = append(violations, validateFile(path, normalized, parts[3], modulePath, servicePrefix)...)
		return nil
	})

	return violations
}

func validateFile(path string, normalizedPath string, layer string, modulePath string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	contextsPrefix := modulePath + "/contexts/"
	rule, layered := layerRules[layer]

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line

		if strings.HasPrefix(importPath, contextsPrefix) && !hasPrefix(importPath, servicePrefix) {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   line,
				Import: importPath,
				Rule:   "cross-module imports are forbidden",
			})
			continue
		}
		if !layered || isStdlib(importPath, modulePath) {
			continue
		}
		if hasPrefix(importPath, modulePath+"/internal") {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   line,
				Import: importPath,
				Rule:   layer + " must not import runtime infrastructure",
			})
			continue
		}
		if !isAllowed(importPath, rule.allowed, modulePath, servicePrefix) {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   line,
				Import: importPath,
				Rule:   layer + " import is outside explicit allowlist",
			})
		}
	}
	return violations
}

func isAllowed(importPath string, allowed []string, modulePath string, servicePrefix string) bool {
	for _, entry := range allowed {
		prefix := strings.ReplaceAll(entry, "{module}", modulePath)
		if rel, ok := strings.CutPrefix(prefix, "./"); ok {
			prefix = servicePrefix + "/" + rel
		}
		if hasPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string, modulePath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
