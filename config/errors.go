package config

import (
	"fmt"

	"github.com/dbstream/binlogrelay/binlog"
)

func wrapConfigError(path string, err error) error {
	return &binlog.Error{Kind: binlog.KindConfigParse, Msg: fmt.Sprintf("load %s", path), Err: err}
}
