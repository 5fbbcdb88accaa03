package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/opsboard-services/internal/boardsvc/config"
	pg "github.com/avvvet/opsboard-services/internal/boardsvc/db"
	mongodb "github.com/avvvet/opsboard-services/internal/db"
	log "github.com/sirupsen/logrus"
)

// Open connects the document store selected by STORE_DRIVER. The returned
// func releases the connection.
func Open(cfg config.Config) (DocumentStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		db, disconnect, err := mongodb.ConnectToDB(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		if err := mongodb.CreateFileIndexes(db, FilesCollection); err != nil {
			disconnect()
			return nil, nil, err
		}
		log.Printf("MongoDB connection established successfully")
		return NewMongoStore(db), disconnect, nil

	case config.DriverPostgres:
		pool, err := pg.Connect(cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		st := NewPostgresStore(pool)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.EnsureSchema(ctx); err != nil {
			pg.ClosePool()
			return nil, nil, err
		}
		log.Printf("pg connection established successfully")
		return st, pg.ClosePool, nil

	case config.DriverMemory:
		log.Warn("using in-memory store, boards are lost on restart")
		return NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
