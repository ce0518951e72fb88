package supervisor

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/template"
)

//go:embed assets
var assetFS embed.FS

const HelperName = "mpv-grid-broadcast"

// AssetOptions fill in the generated input.conf, scripts and helper.
type AssetOptions struct {
	SeekSeconds    int
	SkipperEnabled bool
	SkipperPercent float64

	// Exec is what the helper wrapper runs. Flag, when set, goes before the
	// action ("--broadcast" when Exec is mpv-grid itself).
	Exec string
	Flag string
}

// Assets are the files the players are launched with.
type Assets struct {
	Root      string
	InputConf string
	Scripts   []string
	BinDir    string
	Helper    string
}

// HelperTarget picks what the broadcast wrapper runs: the standalone helper when it is
// installed next to self, otherwise self in --broadcast mode.
func HelperTarget(self string) (execPath, flag string) {
	sibling := filepath.Join(filepath.Dir(self), HelperName)
	if info, err := os.Stat(sibling); err == nil && info.Mode().IsRegular() && info.Mode()&0111 != 0 {
		return sibling, ""
	}
	return self, "--broadcast"
}

// WriteAssets renders every asset under root/mpv-assets.
func WriteAssets(root string, o AssetOptions) (*Assets, error) {
	a := &Assets{Root: filepath.Join(root, "mpv-assets")}
	scriptsDir := filepath.Join(a.Root, "scripts")
	a.BinDir = filepath.Join(a.Root, "bin")
	for _, dir := range []string{scriptsDir, a.BinDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create asset dir: %w", err)
		}
	}

	data := map[string]any{
		"SeekSeconds":    o.SeekSeconds,
		"SkipperEnabled": o.SkipperEnabled,
		"SkipperPercent": strconv.FormatFloat(o.SkipperPercent, 'f', -1, 64),
		"Exec":           shellQuote(o.Exec),
		"Flag":           o.Flag,
	}

	a.InputConf = filepath.Join(a.Root, "input.conf")
	if err := render("assets/input.conf.tmpl", data, a.InputConf, 0644); err != nil {
		return nil, err
	}

	names, err := fs.Glob(assetFS, "assets/scripts/*.lua")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	for _, name := range names {
		dst := filepath.Join(scriptsDir, filepath.Base(name))
		if err := render(name, data, dst, 0644); err != nil {
			return nil, err
		}
		a.Scripts = append(a.Scripts, dst)
	}

	a.Helper = filepath.Join(a.BinDir, HelperName)
	if err := render("assets/broadcast.sh.tmpl", data, a.Helper, 0755); err != nil {
		return nil, err
	}
	return a, nil
}

func render(name string, data any, dst string, mode os.FileMode) error {
	raw, err := assetFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read asset %s: %w", name, err)
	}
	tmpl, err := template.New(filepath.Base(name)).Parse(string(raw))
	if err != nil {
		return fmt.Errorf("parse asset %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render asset %s: %w", name, err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), mode); err != nil {
		return fmt.Errorf("write asset %s: %w", dst, err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(dst, mode)
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, `'\''`...)
			continue
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
