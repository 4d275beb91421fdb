package oss

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore 未配置 OSS 时把报表写到本地目录
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "./data/reports"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	return &LocalStore{dir: filepath.Clean(dir)}, nil
}

// resolve 防止 object key 跳出存储目录
func (s *LocalStore) resolve(objectKey string) (string, error) {
	p := filepath.Join(s.dir, filepath.FromSlash(objectKey))
	if !strings.HasPrefix(p, s.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key: %s", objectKey)
	}
	return p, nil
}

func (s *LocalStore) Upload(objectKey string, data []byte, _ string) (string, error) {
	p, err := s.resolve(objectKey)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("failed to create dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return "", nil
}

func (s *LocalStore) DownloadURL(string, int64) (string, error) {
	return "", nil
}

func (s *LocalStore) LocalPath(objectKey string) string {
	p, err := s.resolve(objectKey)
	if err != nil {
		return ""
	}
	return p
}

// Delete 文件不存在视为成功
func (s *LocalStore) Delete(objectKey string) error {
	p, err := s.resolve(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
