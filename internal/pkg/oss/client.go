package oss

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/agripulse/agri_go_server/config"
)

const defaultSignExpire int64 = 3600

// Store 报表文件存储
type Store interface {
	Upload(objectKey string, data []byte, contentType string) (string, error)
	// DownloadURL 远端存储返回签名 URL，本地存储返回空字符串
	DownloadURL(objectKey string, expireSeconds int64) (string, error)
	// LocalPath 本地存储返回文件路径，远端存储返回空字符串
	LocalPath(objectKey string) string
	Delete(objectKey string) error
}

// New 配置了 OSS 时使用 OSS，否则退回本地目录
func New(cfg *config.OSSConfig, localDir string) (Store, error) {
	if cfg != nil && cfg.Endpoint != "" && cfg.BucketName != "" {
		return NewClient(cfg)
	}
	return NewLocalStore(localDir)
}

// Client 阿里云 OSS 实现
type Client struct {
	bucket    *oss.Bucket
	endpoint  string
	cdnDomain string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", cfg.BucketName, err)
	}

	return &Client{
		bucket:    bucket,
		endpoint:  cfg.Endpoint,
		cdnDomain: cfg.CDNDomain,
	}, nil
}

// Upload 写入对象，下载时按对象名作为文件名
func (c *Client) Upload(objectKey string, data []byte, contentType string) (string, error) {
	err := c.bucket.PutObject(objectKey, bytes.NewReader(data),
		oss.ContentType(contentType),
		oss.ContentDisposition(fmt.Sprintf("attachment; filename=%q", path.Base(objectKey))),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	return c.objectURL(objectKey), nil
}

func (c *Client) Delete(objectKey string) error {
	if err := c.bucket.DeleteObject(objectKey); err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectKey, err)
	}
	return nil
}

// objectURL 配置了 CDN 时走 CDN 域名
func (c *Client) objectURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, objectKey)
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", c.bucket.BucketName, host, objectKey)
}

// DownloadURL 签名的临时下载地址，expireSeconds <= 0 时为 1 小时
func (c *Client) DownloadURL(objectKey string, expireSeconds int64) (string, error) {
	if expireSeconds <= 0 {
		expireSeconds = defaultSignExpire
	}
	signed, err := c.bucket.SignURL(objectKey, oss.HTTPGet, expireSeconds)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", objectKey, err)
	}
	return signed, nil
}

func (c *Client) LocalPath(string) string {
	return ""
}

// ContentType 报表格式对应的 Content-Type
func ContentType(format string) string {
	switch format {
	case "csv":
		return "text/csv; charset=utf-8"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
