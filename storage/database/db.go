package database

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core"
	boltdb "github.com/chetansharma-meta/Exam-Portal/storage/database/bolt"
	inmemdb "github.com/chetansharma-meta/Exam-Portal/storage/database/inmem"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the DB for the configured engine, along with the closer of its storage.
// With the bolt engine, the state is loaded from conf.Database.Path and saved back after each change.
func Open(conf *core.Config, logger core.Logger) (*inmemdb.DB, io.Closer, error) {
	switch conf.Database.Engine {
	case core.EngineMemory:
		db, err := inmemdb.Open(nil)
		return db, nopCloser{}, err

	case core.EngineBolt:
		persister, err := boltdb.Open(conf.Database.Path, conf.Database.Namespace, conf.Database.OpenTimeout)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening bolt storage")
		}
		db, err := inmemdb.Open(persister)
		if err != nil {
			_ = persister.Close()
			return nil, nil, errors.Wrap(err, "loading bolt storage")
		}
		logger.Info(fmt.Sprintf("database loaded from %s", conf.Database.Path))
		return db, persister, nil
	}
	return nil, nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}
