package archive

import "github.com/yourname/clockwork/internal"

func NewFileRepository(file string, logger internal.Logger) (SessionRepository, error) {
	return NewFileStorage(file, logger)
}

func NewPostgresRepository(dsn string, logger internal.Logger) (SessionRepository, error) {
	return NewPostgresStorage(dsn, logger)
}
