package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/padel-media-backend/internal/pkg/errors"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/padel-media-backend/internal/pkg/minio"
)

var errOutsideRoot = errors.New("path escapes upload root")

// LocalSink 上传目录存储，可选把写入同步到对象存储
type LocalSink struct {
	root   string
	prefix string
	mirror *pkgminio.Client
	logger *logger.Logger
}

// NewLocalSink 创建本地存储，root 不存在时自动创建；mirror 可为 nil
func NewLocalSink(root, publicPrefix string, mirror *pkgminio.Client, log *logger.Logger) (*LocalSink, error) {
	if root == "" {
		return nil, errors.New("upload root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}

	log.Info("local storage initialized",
		zap.String("path", abs),
		zap.String("public_prefix", publicPrefix),
		zap.Bool("mirror", mirror != nil))

	return &LocalSink{
		root:   abs,
		prefix: "/" + strings.Trim(publicPrefix, "/"),
		mirror: mirror,
		logger: log,
	}, nil
}

// Root 上传目录绝对路径
func (s *LocalSink) Root() string {
	return s.root
}

// resolve 相对路径转为绝对路径，拒绝逃出上传目录的路径
func (s *LocalSink) resolve(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	r, err := filepath.Rel(s.root, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return full, nil
}

// Write 写入新文件，同名文件已存在时失败
func (s *LocalSink) Write(ctx context.Context, folder, name string, r io.Reader, size int64, mimeType string) (string, error) {
	rel := path.Join(folder, name)
	full, err := s.resolve(rel)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrMediaInvalidFolder)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("file written", zap.String("path", rel), zap.Int64("bytes", written))
	s.mirrorPut(ctx, rel, full, written, mimeType)
	return rel, nil
}

// mirrorPut 同步到对象存储，失败只记录日志
func (s *LocalSink) mirrorPut(ctx context.Context, rel, full string, size int64, mimeType string) {
	if s.mirror == nil {
		return
	}
	f, err := os.Open(full)
	if err != nil {
		s.logger.Warn("mirror skipped, reopen failed", zap.String("path", rel), zap.Error(err))
		return
	}
	defer f.Close()

	if err := s.mirror.PutObject(ctx, rel, f, size, mimeType); err != nil {
		s.logger.Warn("failed to mirror file", zap.String("path", rel), zap.Error(err))
	}
}

// Remove 删除文件，文件不存在不算错误
func (s *LocalSink) Remove(ctx context.Context, rel string) error {
	full, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.RemoveObject(ctx, rel); err != nil {
			s.logger.Warn("failed to remove mirrored file", zap.String("path", rel), zap.Error(err))
		}
	}
	return nil
}

// MakeDir 创建目录（含上级目录）
func (s *LocalSink) MakeDir(rel string) error {
	full, err := s.resolve(rel)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrMediaInvalidFolder)
	}
	return os.MkdirAll(full, 0o755)
}

// RemoveDir 删除空目录
func (s *LocalSink) RemoveDir(rel string) error {
	full, err := s.resolve(rel)
	if err != nil || full == s.root {
		return apperrors.New(apperrors.ErrMediaInvalidFolder, rel)
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.New(apperrors.ErrMediaFolderNotFound, rel)
		}
		return fmt.Errorf("failed to stat folder: %w", err)
	}
	if !info.IsDir() {
		return apperrors.New(apperrors.ErrMediaFolderNotFound, rel)
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return fmt.Errorf("failed to read folder: %w", err)
	}
	if len(entries) > 0 {
		return apperrors.New(apperrors.ErrMediaFolderNotEmpty, rel)
	}
	return os.Remove(full)
}

// Dirs 递归列出子目录，跳过隐藏目录
func (s *LocalSink) Dirs() ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || p == s.root {
			return nil
		}
		if isHidden(d.Name()) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		dirs = append(dirs, filepath.ToSlash(rel))
		return nil
	})
	return dirs, err
}

// WalkFiles 递归遍历文件，跳过隐藏文件和目录
func (s *LocalSink) WalkFiles(fn func(rel string, size int64) error) error {
	return filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == s.root {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info.Size())
	})
}

// URL 相对路径对应的公开地址
func (s *LocalSink) URL(rel string) string {
	return s.prefix + "/" + strings.TrimLeft(rel, "/")
}

// RelPath 公开地址转为相对路径，非本地地址返回 false
func (s *LocalSink) RelPath(url string) (string, bool) {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	rel, ok := strings.CutPrefix(url, s.prefix+"/")
	if !ok || rel == "" {
		return "", false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", false
		}
	}
	return rel, true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
