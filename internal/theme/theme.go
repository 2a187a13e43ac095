// Package theme installs and updates site themes from git repositories.
package theme

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/norgolith/lith/internal/lerrors"
	"github.com/norgolith/lith/internal/logfields"
)

// Metadata is the theme.toml a theme repository ships.
type Metadata struct {
	Name        string `toml:"name"`
	Author      string `toml:"author"`
	Description string `toml:"description"`
	Version     string `toml:"version"`
	License     string `toml:"license"`
}

// Installed is the .metadata.toml written next to an installed theme, used
// by the update mechanism.
type Installed struct {
	Repo    string `toml:"repo"`
	Version string `toml:"version"`
	Pin     bool   `toml:"pin"`
}

// ResolveShorthand expands repository shorthands: gh:/github:, srht:/
// sourcehut:, berg:/codeberg:, and bare owner/repo (GitHub by default).
func ResolveShorthand(repo string) (string, error) {
	if service, rest, found := strings.Cut(repo, ":"); found {
		switch strings.ToLower(service) {
		case "gh", "github":
			return "https://github.com/" + rest, nil
		case "srht", "sourcehut":
			return "https://git.sr.ht/~" + rest, nil
		case "berg", "codeberg":
			return "https://codeberg.org/" + rest, nil
		case "http", "https":
			return repo, nil
		default:
			return "", lerrors.Newf(lerrors.KindConfig, "unknown repository service: %s", service)
		}
	}
	return "https://github.com/" + repo, nil
}

// Pull clones the theme repository, checks out the requested (or highest)
// version tag, and installs templates/, assets/ and theme.toml under
// <root>/theme.
func Pull(root, repo, version string, pin bool) error {
	url, err := ResolveShorthand(repo)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "lith-theme-*")
	if err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "create temp directory")
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	slog.Info("Pulling theme", slog.String("repo", url))
	repository, err := git.PlainClone(tmpDir, false, &git.CloneOptions{URL: url})
	if err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "clone theme repository")
	}

	tag, err := pickVersion(repository, version)
	if err != nil {
		return err
	}
	if tag != "" {
		wt, err := repository.Worktree()
		if err != nil {
			return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "open theme worktree")
		}
		if err := wt.Checkout(&git.CheckoutOptions{
			Branch: plumbing.ReferenceName("refs/tags/" + tag),
		}); err != nil {
			return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "checkout theme version "+tag)
		}
		slog.Info("Using theme version", slog.String("version", tag))
	}

	themeDir := filepath.Join(root, "theme")
	if err := os.RemoveAll(themeDir); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "clear theme directory")
	}
	for _, sub := range []string{"templates", "assets"} {
		src := filepath.Join(tmpDir, sub)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyTree(src, filepath.Join(themeDir, sub)); err != nil {
			return err
		}
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "theme.toml")); err == nil {
		if err := copyFile(filepath.Join(tmpDir, "theme.toml"), filepath.Join(themeDir, "theme.toml")); err != nil {
			return err
		}
	}

	installed := Installed{Repo: repo, Version: tag, Pin: pin}
	return writeInstalled(themeDir, installed)
}

// Update re-pulls the recorded repository; pinned themes stay on their
// recorded major version line by re-requesting the same version prefix.
func Update(root string) error {
	themeDir := filepath.Join(root, "theme")
	installed, err := readInstalled(themeDir)
	if err != nil {
		return err
	}
	version := ""
	if installed.Pin && installed.Version != "" {
		version = majorOf(installed.Version)
	}
	return Pull(root, installed.Repo, version, installed.Pin)
}

// Info loads the installed theme's metadata.
func Info(root string) (*Metadata, error) {
	path := filepath.Join(root, "theme", "theme.toml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "no theme installed")
	}
	var meta Metadata
	if err := toml.Unmarshal(raw, &meta); err != nil {
		return nil, lerrors.Wrap(err, lerrors.KindConfig, lerrors.SeverityError, "parse theme.toml")
	}
	return &meta, nil
}

// pickVersion returns the tag to check out: the requested one, or the
// highest semver-shaped tag, or "" when the repository has no version tags.
func pickVersion(repository *git.Repository, requested string) (string, error) {
	tags, err := repository.Tags()
	if err != nil {
		return "", lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "list theme tags")
	}
	var versions []string
	_ = tags.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if isSemverTag(name) {
			versions = append(versions, name)
		}
		return nil
	})
	if len(versions) == 0 {
		if requested != "" {
			return "", lerrors.Newf(lerrors.KindConfig, "theme has no version tags, cannot satisfy %q", requested)
		}
		return "", nil
	}
	sort.Slice(versions, func(i, j int) bool { return semverLess(versions[i], versions[j]) })
	if requested == "" {
		return versions[len(versions)-1], nil
	}
	// Exact tag or prefix ("1" pins a major line, "1.2" a minor line).
	for i := len(versions) - 1; i >= 0; i-- {
		v := strings.TrimPrefix(versions[i], "v")
		if v == requested || strings.HasPrefix(v, requested+".") {
			return versions[i], nil
		}
	}
	return "", lerrors.Newf(lerrors.KindConfig, "no matching theme version for %q", requested)
}

func isSemverTag(tag string) bool {
	parts := strings.SplitN(strings.TrimPrefix(tag, "v"), ".", 3)
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func semverLess(a, b string) bool {
	pa := strings.SplitN(strings.TrimPrefix(a, "v"), ".", 3)
	pb := strings.SplitN(strings.TrimPrefix(b, "v"), ".", 3)
	for i := 0; i < 3; i++ {
		na, nb := atoiSafe(pa[i]), atoiSafe(pb[i])
		if na != nb {
			return na < nb
		}
	}
	return false
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func majorOf(version string) string {
	major, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	return major
}

func writeInstalled(themeDir string, installed Installed) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(installed); err != nil {
		return lerrors.Wrap(err, lerrors.KindInternal, lerrors.SeverityError, "encode theme metadata")
	}
	path := filepath.Join(themeDir, ".metadata.toml")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "write "+path)
	}
	return nil
}

func readInstalled(themeDir string) (*Installed, error) {
	raw, err := os.ReadFile(filepath.Join(themeDir, ".metadata.toml"))
	if err != nil {
		return nil, lerrors.Wrap(err, lerrors.KindConfig, lerrors.SeverityError,
			"no installed theme metadata; run `lith theme pull` first")
	}
	var installed Installed
	if err := toml.Unmarshal(raw, &installed); err != nil {
		return nil, lerrors.Wrap(err, lerrors.KindConfig, lerrors.SeverityError, "parse .metadata.toml")
	}
	return &installed, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "read "+src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "create "+filepath.Dir(dst))
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return lerrors.Wrap(err, lerrors.KindIO, lerrors.SeverityError, "write "+dst)
	}
	slog.Debug("Installed theme file", logfields.Path(dst))
	return nil
}

// String renders theme info for the CLI.
func (m *Metadata) String() string {
	return fmt.Sprintf("%s %s by %s (%s)\n%s", m.Name, m.Version, m.Author, m.License, m.Description)
}
