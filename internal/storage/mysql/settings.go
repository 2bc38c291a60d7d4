package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "Greeter-Service/internal/errors"
)

// ErrSettingNotFound 表示 settings 表中不存在指定名称的记录。Get 返回的错误以 NOT_FOUND 错误码包裹它。
var ErrSettingNotFound = stdErrors.New("setting not found")

// 1146: Table doesn't exist.
const errNoSuchTable = 1146

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// SettingsRepository 读写 name/value 形式的配置表。
type SettingsRepository struct {
	db    *sql.DB
	table string
}

// Open 创建连接池并返回指定表的仓库。
func Open(ctx context.Context, cfg Config, table string) (*SettingsRepository, error) {
	if table == "" {
		table = "settings"
	}
	if !tablePattern.MatchString(table) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("非法的表名: %q", table))
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 MySQL 失败")
	}
	return &SettingsRepository{db: db, table: table}, nil
}

// Table 返回仓库使用的表名。
func (r *SettingsRepository) Table() string {
	return r.table
}

// Get 查询指定名称的配置值。
func (r *SettingsRepository) Get(ctx context.Context, name string) (string, error) {
	stmt := fmt.Sprintf("SELECT value FROM `%s` WHERE name = ? LIMIT 1", r.table)

	var value string
	if err := r.db.QueryRowContext(ctx, stmt, name).Scan(&value); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return "", xerrors.Wrap(xerrors.CodeNotFound, ErrSettingNotFound, "配置不存在",
				xerrors.WithMetadata("name", name))
		}
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == errNoSuchTable {
			return "", xerrors.Wrap(xerrors.CodeStorageFailure, err,
				fmt.Sprintf("表 %s 不存在，请先执行 greeterd migrate", r.table),
				xerrors.WithRetryable(false))
		}
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询配置失败",
			xerrors.WithMetadata("name", name))
	}
	return value, nil
}

// Put 写入或覆盖指定名称的配置值。
func (r *SettingsRepository) Put(ctx context.Context, name, value string) error {
	stmt := fmt.Sprintf("INSERT INTO `%s` (name, value, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)", r.table)

	if _, err := r.db.ExecContext(ctx, stmt, name, value, time.Now().Unix()); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入配置失败",
			xerrors.WithMetadata("name", name))
	}
	return nil
}

// Close 关闭连接池。
func (r *SettingsRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
