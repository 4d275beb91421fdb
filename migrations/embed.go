package migrations

import "embed"

// FS 版本化的 MySQL 迁移脚本，由 cmd/migrate 通过 golang-migrate 的 iofs 源加载
//
//go:embed *.sql
var FS embed.FS
