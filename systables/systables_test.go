package systables

import (
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/db/engines/maple"
)

func newMapleFactory() storage.DBFactory {
	return func() db.KVDB { return maple.NewMapleDB(nil) }
}
