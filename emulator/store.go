package emulator

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// store is the emulator's repository, an SQLite database holding the
// configuration registry, repository variables and loaded records. Using a
// file-backed database gives the emulator the same persistence the real
// library has: configurations registered in one engine span are visible to
// the next span opened on the same connection string.
//
// SYS_CFG uses AUTOINCREMENT so configuration ids are never reused, not even
// after deletion of earlier rows or across process restarts.
type store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS SYS_CFG (
	CONFIG_ID INTEGER PRIMARY KEY AUTOINCREMENT,
	CONFIG_DATA TEXT NOT NULL,
	CONFIG_COMMENTS TEXT NOT NULL DEFAULT '',
	SYS_CREATE_DT TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS SYS_VARS (
	VAR_GROUP TEXT NOT NULL,
	VAR_CODE TEXT NOT NULL,
	VAR_VALUE TEXT NOT NULL,
	PRIMARY KEY (VAR_GROUP, VAR_CODE)
);
CREATE TABLE IF NOT EXISTS DSRC_RECORD (
	ENTITY_ID INTEGER PRIMARY KEY AUTOINCREMENT,
	DSRC_CODE TEXT NOT NULL,
	RECORD_ID TEXT NOT NULL,
	RECORD_DATA TEXT NOT NULL,
	UNIQUE (DSRC_CODE, RECORD_ID)
);
`

// openStore opens or creates the repository at path and applies the schema.
// The pool is capped at one connection; the emulator is serialized upstream
// and a single connection keeps in-memory databases coherent.
func openStore(path string) (*store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &store{db: db, path: path}, nil
}

func (s *store) close() error {
	return s.db.Close()
}

func nowStamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05.000")
}

// registerConfig inserts a configuration and returns its fresh id. Identical
// definitions are not deduplicated; every call mints a new id.
func (s *store) registerConfig(definition, comment string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO SYS_CFG (CONFIG_DATA, CONFIG_COMMENTS, SYS_CREATE_DT) VALUES (?, ?, ?)`,
		definition, comment, nowStamp(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// config returns the definition stored under id.
func (s *store) config(id int64) (string, bool, error) {
	var definition string
	err := s.db.QueryRow(`SELECT CONFIG_DATA FROM SYS_CFG WHERE CONFIG_ID = ?`, id).Scan(&definition)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return definition, true, nil
}

type configInfo struct {
	ID      int64
	Comment string
	Created string
}

// configRegistry lists registered configurations in id order.
func (s *store) configRegistry() ([]configInfo, error) {
	rows, err := s.db.Query(
		`SELECT CONFIG_ID, CONFIG_COMMENTS, SYS_CREATE_DT FROM SYS_CFG ORDER BY CONFIG_ID`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []configInfo
	for rows.Next() {
		var info configInfo
		if err := rows.Scan(&info.ID, &info.Comment, &info.Created); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// defaultConfigID returns the repository default pointer, zero when unset.
func (s *store) defaultConfigID() (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`SELECT VAR_VALUE FROM SYS_VARS WHERE VAR_GROUP = 'SYS' AND VAR_CODE = 'DEFAULT_CONFIG_ID'`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// setDefaultConfigID moves the repository default pointer.
func (s *store) setDefaultConfigID(id int64) error {
	_, err := s.db.Exec(
		`INSERT INTO SYS_VARS (VAR_GROUP, VAR_CODE, VAR_VALUE) VALUES ('SYS', 'DEFAULT_CONFIG_ID', ?)
		 ON CONFLICT (VAR_GROUP, VAR_CODE) DO UPDATE SET VAR_VALUE = excluded.VAR_VALUE`, id)
	return err
}

type recordRow struct {
	EntityID   int64
	DataSource string
	RecordID   string
	Data       string
}

// upsertRecord stores a record and returns its entity id. Replaced records
// keep the entity id they were first assigned.
func (s *store) upsertRecord(dataSource, recordID, data string) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`SELECT ENTITY_ID FROM DSRC_RECORD WHERE DSRC_CODE = ? AND RECORD_ID = ?`,
		dataSource, recordID).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.Exec(
			`INSERT INTO DSRC_RECORD (DSRC_CODE, RECORD_ID, RECORD_DATA) VALUES (?, ?, ?)`,
			dataSource, recordID, data)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	case err != nil:
		return 0, err
	default:
		_, err := s.db.Exec(
			`UPDATE DSRC_RECORD SET RECORD_DATA = ? WHERE ENTITY_ID = ?`, data, id)
		return id, err
	}
}

// record returns one record by key.
func (s *store) record(dataSource, recordID string) (recordRow, bool, error) {
	var row recordRow
	err := s.db.QueryRow(
		`SELECT ENTITY_ID, DSRC_CODE, RECORD_ID, RECORD_DATA FROM DSRC_RECORD
		 WHERE DSRC_CODE = ? AND RECORD_ID = ?`, dataSource, recordID).
		Scan(&row.EntityID, &row.DataSource, &row.RecordID, &row.Data)
	if err == sql.ErrNoRows {
		return recordRow{}, false, nil
	}
	if err != nil {
		return recordRow{}, false, err
	}
	return row, true, nil
}

// entity returns one record by entity id.
func (s *store) entity(entityID int64) (recordRow, bool, error) {
	var row recordRow
	err := s.db.QueryRow(
		`SELECT ENTITY_ID, DSRC_CODE, RECORD_ID, RECORD_DATA FROM DSRC_RECORD
		 WHERE ENTITY_ID = ?`, entityID).
		Scan(&row.EntityID, &row.DataSource, &row.RecordID, &row.Data)
	if err == sql.ErrNoRows {
		return recordRow{}, false, nil
	}
	if err != nil {
		return recordRow{}, false, err
	}
	return row, true, nil
}

// deleteRecord removes a record, reporting whether it existed.
func (s *store) deleteRecord(dataSource, recordID string) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM DSRC_RECORD WHERE DSRC_CODE = ? AND RECORD_ID = ?`, dataSource, recordID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// records lists every loaded record in entity id order.
func (s *store) records() ([]recordRow, error) {
	rows, err := s.db.Query(
		`SELECT ENTITY_ID, DSRC_CODE, RECORD_ID, RECORD_DATA FROM DSRC_RECORD ORDER BY ENTITY_ID`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recordRow
	for rows.Next() {
		var row recordRow
		if err := rows.Scan(&row.EntityID, &row.DataSource, &row.RecordID, &row.Data); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// countRecords returns the number of loaded records.
func (s *store) countRecords() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM DSRC_RECORD`).Scan(&n)
	return n, err
}

// purgeRecords removes all loaded records, leaving configurations intact.
func (s *store) purgeRecords() error {
	_, err := s.db.Exec(`DELETE FROM DSRC_RECORD`)
	return err
}
