//go:build mage

// Package main contains Mage build targets for paperwatch developer tooling.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// workDirs lists the local directories a development watch session uses.
var workDirs = []string{
	"bin",
	"work/downloads",
	"work/storage",
}

const sampleConfig = `downloads_dirs:
  - work/downloads
project_file: work/project.yaml
organize:
  storage_dir: work/storage
  mode: copy
log:
  level: debug
`

const sampleProject = `references:
  - id: PMID:12345678
    title: Role of PTEN in apoptosis
`

// Init creates the development directories and a sample configuration.
func Init() error {
	for _, dir := range workDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	for path, content := range map[string]string{
		"paperwatch.yaml":   sampleConfig,
		"work/project.yaml": sampleProject,
	} {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Println("  ", path)
	}
	fmt.Println("Development directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "paperwatch"
	cmdPkg  = "./cmd/paperwatch"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	mg.Deps(Init)
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the test suite with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Clean removes build output and the development directories.
func Clean() error {
	for _, p := range []string{binDir, "work"} {
		if err := sh.Rm(p); err != nil {
			return err
		}
	}
	return nil
}

// Stats prints the number of packages, Go source files and test functions.
func Stats() error {
	pkgs := map[string]bool{}
	var sources, tests, testFuncs int
	err := filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasPrefix(path, "magefiles") {
			return nil
		}
		pkgs[filepath.Dir(path)] = true
		if !strings.HasSuffix(path, "_test.go") {
			sources++
			return nil
		}
		tests++
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		testFuncs += countTestFuncs(data)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Packages:        %d\n", len(pkgs))
	fmt.Printf("Source files:    %d\n", sources)
	fmt.Printf("Test files:      %d\n", tests)
	fmt.Printf("Test functions:  %d\n", testFuncs)
	return nil
}

func countTestFuncs(data []byte) int {
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "func Test") {
			n++
		}
	}
	return n
}
