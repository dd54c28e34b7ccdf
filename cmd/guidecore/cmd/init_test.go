package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCmd_CreatesSiteConfig(t *testing.T) {
	// Given: a site without a config file
	dir := writeTestSite(t, testPage)
	chdir(t, dir)

	// When: running init
	cmd := newInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()

	// Then: the template is written and next steps are shown
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Created")
	assert.Contains(t, output, "Site initialized")
	assert.Contains(t, output, "Next steps:")

	data, err := os.ReadFile(filepath.Join(dir, ".guidecore.yaml"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "version:", "Should contain version field")
	assert.Contains(t, content, "site:", "Should contain site section")
	assert.Contains(t, content, "search:", "Should contain search section")
	assert.Contains(t, content, "#", "Should contain commented options")
}

func TestInitCmd_WorksInEmptyDirectory(t *testing.T) {
	// Given: a directory with no site in it yet
	dir := t.TempDir()
	chdir(t, dir)

	// When: running init
	cmd := newInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()

	// Then: the config is still created, with a heads-up about content
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No index.html or content directory found yet")
	assert.FileExists(t, filepath.Join(dir, ".guidecore.yaml"))
}

func TestInitCmd_PreservesExistingConfig(t *testing.T) {
	// Given: a site with a hand-edited config
	dir := writeTestSite(t, testPage)
	existing := "version: 1\n# my tweaks\nsite:\n  title: Mine\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".guidecore.yaml"), []byte(existing), 0o644))
	chdir(t, dir)

	// When: running init without --force
	cmd := newInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()

	// Then: the file is untouched
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "preserved")
	assert.Contains(t, buf.String(), "already initialized")

	data, err := os.ReadFile(filepath.Join(dir, ".guidecore.yaml"))
	require.NoError(t, err)
	assert.Equal(t, existing, string(data), "Existing config should not be overwritten")
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	// Given: a site with an existing config
	dir := writeTestSite(t, testPage)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".guidecore.yaml"), []byte("version: 1\n"), 0o644))
	chdir(t, dir)

	// When: running init --force
	cmd := newInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--force"})

	err := cmd.Execute()

	// Then: the template replaces the old file
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "preserved")

	data, err := os.ReadFile(filepath.Join(dir, ".guidecore.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "search:", "Template content should be written")
}

func TestInitCmd_TitleFlag(t *testing.T) {
	// Given: a site
	dir := writeTestSite(t, testPage)
	chdir(t, dir)

	// When: running init --title
	cmd := newInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--title", "Mixer Handbook"})

	err := cmd.Execute()

	// Then: the title is baked into the template
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, ".guidecore.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `title: "Mixer Handbook"`)
}

func TestInitCmd_AddsGitignoreInRepo(t *testing.T) {
	// Given: a site that is a git repository
	dir := writeTestSite(t, testPage)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	chdir(t, dir)

	// When: running init
	cmd := newInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()

	// Then: the render output directory is ignored
	require.NoError(t, err)
	assert.Contains(t, buf.String(), ".gitignore")

	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "dist/")
	assert.Contains(t, string(content), "# GuideCore render output")
}

func TestInitCmd_NoGitignoreOutsideRepo(t *testing.T) {
	// Given: a site that is not a git repository
	dir := writeTestSite(t, testPage)
	chdir(t, dir)

	// When: running init
	cmd := newInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := cmd.Execute()

	// Then: no .gitignore appears
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, ".gitignore"))
}

func TestInitCmd_GitignoreIdempotent(t *testing.T) {
	// Given: a git repository site
	dir := writeTestSite(t, testPage)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	chdir(t, dir)

	// When: running init twice
	for i := 0; i < 2; i++ {
		cmd := newInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--force"})
		require.NoError(t, cmd.Execute())
	}

	// Then: .gitignore carries exactly one entry
	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	count := bytes.Count(content, []byte("dist/"))
	assert.Equal(t, 1, count, "Should have exactly one dist/ entry after multiple runs")
}

func TestGitignoreEntry(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"empty", "", ""},
		{"absolute path", "/var/www/dist", ""},
		{"current dir", ".", ""},
		{"escapes the site", "../dist", ""},
		{"plain", "dist", "dist/"},
		{"dot slash", "./dist", "dist/"},
		{"nested", "build/site", "build/site/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gitignoreEntry(tt.output))
		})
	}
}

func TestHasIgnoreEntry(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"no match", "*.log\nnode_modules/\n", false},
		{"exact dist", "dist\n", true},
		{"with slash dist/", "dist/\n", true},
		{"rooted /dist", "/dist\n", true},
		{"rooted with slash /dist/", "/dist/\n", true},
		{"commented", "# dist/\n", false},
		{"with whitespace", "  dist/  \n", true},
		{"in middle", "*.log\ndist/\nnode_modules/\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hasIgnoreEntry(tt.content, "dist/")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureGitignore_SkipsWithoutGit(t *testing.T) {
	// Given: a directory that is not a repository
	dir := t.TempDir()

	// When: ensuring the entry
	added, err := ensureGitignore(dir, "dist")

	// Then: nothing happens
	require.NoError(t, err)
	assert.False(t, added)
	assert.NoFileExists(t, filepath.Join(dir, ".gitignore"))
}

func TestEnsureGitignore_CreatesNewFile(t *testing.T) {
	// Given: a repository without .gitignore
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))

	// When: ensuring the entry
	added, err := ensureGitignore(dir, "dist")

	// Then: the file is created with a comment and the entry
	require.NoError(t, err)
	assert.True(t, added)

	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "dist/")
	assert.Contains(t, string(content), "# GuideCore render output")
}

func TestEnsureGitignore_AppendsToExisting(t *testing.T) {
	// Given: a repository with an existing .gitignore
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	gitignorePath := filepath.Join(dir, ".gitignore")
	existing := "*.log\nnode_modules/\n"
	require.NoError(t, os.WriteFile(gitignorePath, []byte(existing), 0o644))

	// When: ensuring the entry
	added, err := ensureGitignore(dir, "dist")

	// Then: old content survives and the entry is appended
	require.NoError(t, err)
	assert.True(t, added)

	content, _ := os.ReadFile(gitignorePath)
	assert.Contains(t, string(content), "*.log", "should preserve existing content")
	assert.Contains(t, string(content), "dist/", "should add the render output")
}

func TestEnsureGitignore_IdempotentVariations(t *testing.T) {
	variations := []string{"dist", "dist/", "/dist", "/dist/"}

	for _, pattern := range variations {
		t.Run(pattern, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
			gitignorePath := filepath.Join(dir, ".gitignore")
			existing := "*.log\n" + pattern + "\n"
			require.NoError(t, os.WriteFile(gitignorePath, []byte(existing), 0o644))

			added, err := ensureGitignore(dir, "dist")

			require.NoError(t, err)
			assert.False(t, added, "should detect variation: %s", pattern)

			content, _ := os.ReadFile(gitignorePath)
			assert.Equal(t, existing, string(content), "should not modify file")
		})
	}
}

func TestEnsureGitignore_PreservesCRLF(t *testing.T) {
	// Given: a .gitignore with CRLF endings
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	gitignorePath := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignorePath, []byte("*.log\r\nnode_modules/\r\n"), 0o644))

	// When: ensuring the entry
	added, err := ensureGitignore(dir, "dist")

	// Then: the new entry uses CRLF too
	require.NoError(t, err)
	assert.True(t, added)

	content, _ := os.ReadFile(gitignorePath)
	assert.Contains(t, string(content), "dist/\r\n")
}

func TestEnsureGitignore_HandlesNoTrailingNewline(t *testing.T) {
	// Given: a .gitignore without a trailing newline
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	gitignorePath := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignorePath, []byte("*.log"), 0o644))

	// When: ensuring the entry
	added, err := ensureGitignore(dir, "dist")

	// Then: a newline is inserted before the new block
	require.NoError(t, err)
	assert.True(t, added)

	content, _ := os.ReadFile(gitignorePath)
	assert.Contains(t, string(content), "*.log\n")
	assert.Contains(t, string(content), "dist/")
}

func TestEnsureGitignore_SkipsCommentedOut(t *testing.T) {
	// Given: a .gitignore where the entry exists only as a comment
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	gitignorePath := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignorePath, []byte("*.log\n# dist/\n"), 0o644))

	// When: ensuring the entry
	added, err := ensureGitignore(dir, "dist")

	// Then: a real entry is added
	require.NoError(t, err)
	assert.True(t, added, "should add entry when existing is commented")
}

func TestEnsureGitignore_AbsoluteOutputSkipped(t *testing.T) {
	// Given: a repository whose render output lives outside the site
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))

	// When: ensuring an absolute output path
	added, err := ensureGitignore(dir, "/srv/www/rendered")

	// Then: nothing is written
	require.NoError(t, err)
	assert.False(t, added)
	assert.NoFileExists(t, filepath.Join(dir, ".gitignore"))
}
