package repopostgre

import (
	"encoding/json"
	"errors"

	"github.com/wlo1561411/HappyTime/logger"
)

// Write writes log to the database.
// p is a marshaled logger.Log.
func (db DataBase) Write(p []byte) (n int, err error) {
	var l logger.Log
	if err := json.Unmarshal(p, &l); err != nil {
		return 0, errors.Join(ErrUnmarshalFailed, err)
	}
	_, err = db.inner.Exec(
		"INSERT INTO logs (level, service, msg, created_at) VALUES ($1, $2, $3, $4)",
		l.Level, l.Service, l.Msg, l.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return 0, errors.Join(ErrInsertFailed, err)
	}
	return len(p), nil
}
