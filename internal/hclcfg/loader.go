// Package hclcfg loads HCL configuration files into the compiler's
// format-agnostic document model.
package hclcfg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/vk/bitforge/internal/ctxlog"
	"github.com/vk/bitforge/internal/document"
)

// Loader is the HCL implementation of document.Loader.
type Loader struct{}

// NewLoader returns an HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file reachable from the given paths and merges
// their top-level blocks into one root section.
func (l *Loader) Load(ctx context.Context, paths ...string) (*document.Section, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered configuration files.", "count", len(files))

	root := document.NewSection("", "")
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("hclcfg: parse %s: %w", file, diags)
		}
		body, ok := hclFile.Body.(*hclsyntax.Body)
		if !ok {
			return nil, fmt.Errorf("hclcfg: %s: unexpected body type", file)
		}
		if err := translateBody(body, root); err != nil {
			return nil, fmt.Errorf("hclcfg: %s: %w", file, err)
		}
	}

	logger.Debug("Configuration loaded.", "sections", len(root.Children), "attrs", len(root.Attrs))
	return root, nil
}

// translateBody copies attributes and nested blocks into the section.
// Attribute expressions evaluate statically: the configuration is a
// data document, not a template language.
func translateBody(body *hclsyntax.Body, into *document.Section) error {
	for name, attr := range body.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return fmt.Errorf("attribute %s: %w", name, diags)
		}
		into.Attrs[name] = val
	}
	for _, block := range body.Blocks {
		label := ""
		if len(block.Labels) > 1 {
			return fmt.Errorf("block %s: at most one label supported, got %d", block.Type, len(block.Labels))
		}
		if len(block.Labels) == 1 {
			label = block.Labels[0]
		}
		child := document.NewSection(block.Type, label)
		if err := translateBody(block.Body, child); err != nil {
			return fmt.Errorf("block %s %q: %w", block.Type, label, err)
		}
		into.Children = append(into.Children, child)
	}
	return nil
}

// findHCLFiles expands files and directories into a deduplicated flat
// list of .hcl files. A missing path is not an error.
func findHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("hclcfg: access %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}

var _ document.Loader = (*Loader)(nil)
