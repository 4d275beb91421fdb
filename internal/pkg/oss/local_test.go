package oss

import (
	"os"
	"testing"

	aliyun "github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agripulse/agri_go_server/config"
)

func TestNew_FallsBackToLocal(t *testing.T) {
	dir := t.TempDir()

	store, err := New(&config.OSSConfig{}, dir)
	require.NoError(t, err)
	_, ok := store.(*LocalStore)
	assert.True(t, ok)
}

func TestLocalStore_UploadAndDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	url, err := store.Upload("reports/1/7.csv", []byte("a,b\n1,2\n"), ContentType("csv"))
	require.NoError(t, err)
	assert.Empty(t, url)

	p := store.LocalPath("reports/1/7.csv")
	require.NotEmpty(t, p)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	signed, err := store.DownloadURL("reports/1/7.csv", 60)
	require.NoError(t, err)
	assert.Empty(t, signed)

	require.NoError(t, store.Delete("reports/1/7.csv"))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	// 重复删除不报错
	assert.NoError(t, store.Delete("reports/1/7.csv"))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Upload("../escape.csv", []byte("x"), "text/csv")
	assert.Error(t, err)
	assert.Empty(t, store.LocalPath("../../etc/passwd"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", ContentType("csv"))
	assert.Equal(t, "application/json", ContentType("json"))
	assert.Equal(t, "application/octet-stream", ContentType("pdf"))
}

func TestClient_ObjectURL(t *testing.T) {
	bucket := &aliyun.Bucket{BucketName: "agri-reports"}

	tests := []struct {
		name   string
		client *Client
		want   string
	}{
		{"cdn", &Client{bucket: bucket, cdnDomain: "cdn.agripulse.ng"}, "https://cdn.agripulse.ng/reports/1/7.csv"},
		{"bucket host", &Client{bucket: bucket, endpoint: "oss-cn-hangzhou.aliyuncs.com"}, "https://agri-reports.oss-cn-hangzhou.aliyuncs.com/reports/1/7.csv"},
		{"endpoint with scheme", &Client{bucket: bucket, endpoint: "https://oss-cn-hangzhou.aliyuncs.com"}, "https://agri-reports.oss-cn-hangzhou.aliyuncs.com/reports/1/7.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.client.objectURL("reports/1/7.csv"))
		})
	}
}
