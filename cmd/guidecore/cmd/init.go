package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/configs"
	"github.com/dubedition/guidecore/internal/config"
	"github.com/dubedition/guidecore/internal/output"
)

func newInitCmd() *cobra.Command {
	var (
		force bool
		title string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a guide site configuration",
		Long: `Create a .guidecore.yaml template in the site root.

The template lists every option with its default, mostly commented out;
uncomment what you need. GuideCore works without the file, so this step
is optional. When the site is a git repository, the render output
directory is also added to .gitignore.

Examples:
  guidecore init
  guidecore init --title "Mixer Handbook"
  guidecore init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force, title)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	cmd.Flags().StringVar(&title, "title", "", "Site title written into the template")

	return cmd
}

func runInit(cmd *cobra.Command, force bool, title string) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveSiteRoot()
	if err != nil {
		return err
	}
	out.Statusf("📁", "Site: %s", root)

	kind := config.DetectSiteKind(root)
	if kind.IsKnown() {
		out.Statusf("", "Content kind: %s", kind)
	} else {
		out.Warning("No index.html or content directory found yet")
	}

	created, err := writeSiteConfig(out, root, title, force)
	if err != nil {
		return err
	}

	// The render output is preview artifact, not source.
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if added, err := ensureGitignore(root, cfg.Render.Output); err != nil {
		out.Warningf("Could not update .gitignore: %v", err)
	} else if added {
		out.Statusf("📝", "Added %s to .gitignore", gitignoreEntry(cfg.Render.Output))
	}

	out.Newline()
	if created {
		out.Success("Site initialized")
	} else {
		out.Success("Site already initialized")
	}
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Edit .guidecore.yaml to taste")
	out.Status("", "  2. Run 'guidecore serve' to preview with live reload")
	out.Status("", "  3. Run 'guidecore mcp' to expose the guide to AI assistants")

	return nil
}

// writeSiteConfig writes the embedded template, preserving an existing
// config file unless force is set. Reports whether a file was written.
func writeSiteConfig(out *output.Writer, root, title string, force bool) (bool, error) {
	yamlPath := filepath.Join(root, ".guidecore.yaml")
	ymlPath := filepath.Join(root, ".guidecore.yml")

	if !force {
		if fileExists(yamlPath) {
			out.Status("ℹ️ ", "Existing .guidecore.yaml preserved (use --force to overwrite)")
			return false, nil
		}
		if fileExists(ymlPath) {
			out.Status("ℹ️ ", "Existing .guidecore.yml preserved (use --force to overwrite)")
			return false, nil
		}
	}

	content := configs.SiteConfigTemplate
	if title != "" {
		content = strings.Replace(content, "title: Guide", fmt.Sprintf("title: %q", title), 1)
	}

	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write .guidecore.yaml: %w", err)
	}
	out.Statusf("📝", "Created %s", yamlPath)
	return true, nil
}

// gitignoreEntry normalizes a render output path to a gitignore line.
// Empty means the path should not be ignored (outside the site).
func gitignoreEntry(outputDir string) string {
	if outputDir == "" || filepath.IsAbs(outputDir) {
		return ""
	}
	entry := filepath.ToSlash(filepath.Clean(outputDir))
	if entry == "." || strings.HasPrefix(entry, "..") {
		return ""
	}
	return entry + "/"
}

// ensureGitignore adds the render output directory to .gitignore so a
// preview render is not committed by accident. Only acts inside git
// repositories; returns (true, nil) when an entry was added.
func ensureGitignore(root, outputDir string) (bool, error) {
	entry := gitignoreEntry(outputDir)
	if entry == "" {
		return false, nil
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return false, nil
	}

	gitignorePath := filepath.Join(root, ".gitignore")
	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	if hasIgnoreEntry(string(content), entry) {
		return false, nil
	}

	// Match the file's existing line endings.
	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, []byte(lineEnding)...)
	}

	var addition string
	if len(content) == 0 {
		addition = fmt.Sprintf("# GuideCore render output%s%s%s", lineEnding, entry, lineEnding)
	} else {
		addition = fmt.Sprintf("%s# GuideCore render output%s%s%s", lineEnding, lineEnding, entry, lineEnding)
	}
	content = append(content, []byte(addition)...)

	if err := os.WriteFile(gitignorePath, content, 0o644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}
	return true, nil
}

// hasIgnoreEntry checks whether .gitignore already covers the directory,
// in any of its common spellings.
func hasIgnoreEntry(content, entry string) bool {
	bare := strings.TrimSuffix(entry, "/")
	patterns := []string{bare, bare + "/", "/" + bare, "/" + bare + "/"}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, pattern := range patterns {
			if line == pattern {
				return true
			}
		}
	}
	return false
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
