// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"
)

type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota
	placeholderDollar
	placeholderAtP
)

// dialect captures what differs between the supported databases: bind
// parameter syntax, DDL and how a unique-key violation is reported.
type dialect struct {
	driver      string
	placeholder placeholderStyle
	schema      []string
	maxConns    int

	prepareDSN        func(dsn string) (string, error)
	isUniqueViolation func(err error) bool
}

func dialectFor(driver string) (*dialect, error) {

	switch driver {
	case DriverPostgres, "postgresql":
		return &dialect{
			driver:            DriverPostgres,
			placeholder:       placeholderDollar,
			schema:            ansiSchema("VARCHAR(255)", "TEXT"),
			prepareDSN:        identityDSN,
			isUniqueViolation: pqUniqueViolation,
		}, nil
	case DriverMySQL, "mariadb":
		return &dialect{
			driver:            DriverMySQL,
			placeholder:       placeholderQuestion,
			schema:            ansiSchema("VARCHAR(255)", "LONGTEXT"),
			prepareDSN:        mysqlDSN,
			isUniqueViolation: mysqlUniqueViolation,
		}, nil
	case DriverSQLServer, "mssql":
		return &dialect{
			driver:            DriverSQLServer,
			placeholder:       placeholderAtP,
			schema:            sqlServerSchema(),
			prepareDSN:        identityDSN,
			isUniqueViolation: mssqlUniqueViolation,
		}, nil
	case DriverSQLite:
		return &dialect{
			driver:            DriverSQLite,
			placeholder:       placeholderQuestion,
			schema:            ansiSchema("TEXT", "TEXT"),
			maxConns:          1,
			prepareDSN:        identityDSN,
			isUniqueViolation: sqliteUniqueViolation,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// rebind rewrites '?' placeholders into the dialect's syntax.
func (d *dialect) rebind(query string) string {

	if d.placeholder == placeholderQuestion {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		switch d.placeholder {
		case placeholderDollar:
			b.WriteString("$" + strconv.Itoa(n))
		case placeholderAtP:
			b.WriteString("@p" + strconv.Itoa(n))
		}
	}
	return b.String()
}

func ansiSchema(key, text string) []string {

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS maas_jobs (
	maas_pool %[1]s NOT NULL,
	collector_cluster %[1]s NOT NULL,
	job_name %[1]s NOT NULL,
	job_type VARCHAR(32) NOT NULL,
	document %[2]s NOT NULL,
	PRIMARY KEY (maas_pool, collector_cluster, job_name)
)`, key, text),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS maas_pools (
	name %[1]s NOT NULL PRIMARY KEY,
	collector_clusters %[2]s NOT NULL
)`, key, text),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS maas_api_keys (
	key_hash VARCHAR(64) NOT NULL PRIMARY KEY,
	document %[1]s NOT NULL
)`, text),
	}
}

func sqlServerSchema() []string {

	return []string{
		`IF OBJECT_ID(N'maas_jobs', N'U') IS NULL CREATE TABLE maas_jobs (
	maas_pool NVARCHAR(128) NOT NULL,
	collector_cluster NVARCHAR(128) NOT NULL,
	job_name NVARCHAR(128) NOT NULL,
	job_type NVARCHAR(32) NOT NULL,
	document NVARCHAR(MAX) NOT NULL,
	PRIMARY KEY (maas_pool, collector_cluster, job_name)
)`,
		`IF OBJECT_ID(N'maas_pools', N'U') IS NULL CREATE TABLE maas_pools (
	name NVARCHAR(128) NOT NULL PRIMARY KEY,
	collector_clusters NVARCHAR(MAX) NOT NULL
)`,
		`IF OBJECT_ID(N'maas_api_keys', N'U') IS NULL CREATE TABLE maas_api_keys (
	key_hash NVARCHAR(64) NOT NULL PRIMARY KEY,
	document NVARCHAR(MAX) NOT NULL
)`,
	}
}

func identityDSN(dsn string) (string, error) {

	return dsn, nil
}

// mysqlDSN makes UPDATE report matched rather than changed rows, so an
// overwrite with identical content is not mistaken for a missing row.
func mysqlDSN(dsn string) (string, error) {

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ClientFoundRows = true
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func pqUniqueViolation(err error) bool {

	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func mysqlUniqueViolation(err error) bool {

	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

func mssqlUniqueViolation(err error) bool {

	var msErr mssql.Error
	return errors.As(err, &msErr) && (msErr.Number == 2627 || msErr.Number == 2601)
}

func sqliteUniqueViolation(err error) bool {

	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	code := liteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
