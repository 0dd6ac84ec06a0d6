/*
Copyright 2024 Mintaro Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/mintaro-app/mintaro/config"
)

var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	return GetDBConnection(configuration)
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS mintaro`); err != nil {
		return nil, err
	}
	if err := createLedgerTransactionTable(db); err != nil {
		return nil, err
	}
	if err := createStatementDocumentTable(db); err != nil {
		return nil, err
	}
	return db, nil
}

func createLedgerTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS mintaro.transactions (
			id BIGSERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			currency TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			vendor TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL,
			evidence_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_occurred
			ON mintaro.transactions (user_id, occurred_at);
	`)
	return err
}

func createStatementDocumentTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS mintaro.statement_documents (
			id BIGSERIAL PRIMARY KEY,
			document_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			file_hash TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			payment_method_id TEXT,
			period_start TIMESTAMP,
			period_end TIMESTAMP,
			uploaded_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_statement_documents_user_hash
			ON mintaro.statement_documents (user_id, file_hash);
	`)
	return err
}
