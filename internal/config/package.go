package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/1602/roco/internal/state"
	"github.com/1602/roco/pkg/utils"
)

// Keys filled from the package descriptor.
const (
	KeySCM        = "scm"
	KeyRepository = "repository"
)

// PackageInfo 项目描述文件中 roco 关心的字段
type PackageInfo struct {
	Path       string
	Name       string
	SCM        string
	Repository string
}

type packageFile struct {
	Name       string `json:"name"`
	Repository any    `json:"repository"`
}

// FindPackage looks for filename in dir and every parent up to the root.
// It returns fs.ErrNotExist when no directory holds one.
func FindPackage(dir, filename string) (*PackageInfo, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, filename)
		data, err := os.ReadFile(path)
		if err == nil {
			return parsePackage(path, data)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fs.ErrNotExist
		}
		dir = parent
	}
}

func parsePackage(path string, data []byte) (*PackageInfo, error) {
	pkg, err := utils.FromJSONBytes[packageFile](data)
	if err != nil {
		return nil, err
	}
	info := &PackageInfo{Path: path, Name: pkg.Name}
	switch repo := pkg.Repository.(type) {
	case string:
		info.Repository = repo
	case map[string]any:
		info.SCM, _ = repo["type"].(string)
		info.Repository, _ = repo["url"].(string)
	}
	return info, nil
}

// Apply installs the application name and repository details.
func (p *PackageInfo) Apply(ctx *state.ExecutionContext) {
	if p.Name != "" {
		ctx.Set(state.KeyApplication, p.Name)
	}
	if p.SCM != "" {
		ctx.Set(KeySCM, p.SCM)
	}
	if p.Repository != "" {
		ctx.Set(KeyRepository, p.Repository)
	}
}
