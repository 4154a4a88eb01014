// Package clickhouse implements the dataset service directly against ClickHouse, with one table
// per dataset.
package clickhouse

import (
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ClickHouse/clickhouse-go/v2/lib/proto"
	"hermannm.dev/mabexplorer/config"
	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

type Service struct {
	conn driver.Conn
}

var (
	_ dataset.Service = Service{}
	_ dataset.Catalog = Service{}
)

func NewService(config config.ClickHouse) (Service, error) {
	// Options docs: https://clickhouse.com/docs/en/integrations/go#connection-settings
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Address},
		Auth: clickhouse.Auth{
			Database: config.DatabaseName,
			Username: config.Username,
			Password: config.Password,
		},
		Debug: config.Debug,
		Debugf: func(format string, v ...any) {
			fmt.Printf(format+"\n", v...)
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return Service{}, wrap.Error(err, "failed to connect to ClickHouse")
	}

	return Service{conn: conn}, nil
}

func (service Service) Close() error {
	return service.conn.Close()
}

// See https://github.com/ClickHouse/ClickHouse/blob/bd387f6d2c30f67f2822244c0648f2169adab4d3/src/Common/ErrorCodes.cpp
const (
	clickhouseUnknownIdentifierErrorCode = 47
	clickhouseUnknownTableErrorCode      = 60
)

func hasErrorCode(err error, code int32) bool {
	var clickHouseErr *proto.Exception
	return errors.As(err, &clickHouseErr) && clickHouseErr.Code == code
}

func tableName(selector dataset.Selector) (string, error) {
	if !selector.IsValid() {
		return "", wrap.Errorf(dataset.ErrInvalidDataset, "unrecognized dataset %d", selector)
	}
	return selector.String(), nil
}
