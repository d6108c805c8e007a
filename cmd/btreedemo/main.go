// Command btreedemo wires a FileManager, LogManager, buffer Pool,
// LockTable and Transaction together and drives a small B-tree index
// through an insert/scan/delete cycle, the way the teacher's own
// main.go bootstraps a CentauriDB instance (internal/app/server), sized
// down to just the index engine this module implements.
package main

import (
	"flag"
	"fmt"
	"log"

	"cairndb/internal/dbcore/buffer"
	"cairndb/internal/dbcore/btree"
	"cairndb/internal/dbcore/config"
	"cairndb/internal/dbcore/file"
	dblog "cairndb/internal/dbcore/log"
	"cairndb/internal/dbcore/tx"
	"cairndb/internal/dbcore/types"
)

const (
	logFile   = "cairndb.log"
	indexName = "demo"
)

func main() {
	dbDir := flag.String("dir", "./cairndb-data", "database directory")
	blockSize := flag.Int("blocksize", 400, "file block size in bytes")
	poolSize := flag.Int("poolsize", config.DefaultBufferPoolSize, "buffer pool frame count")
	maxTimeMS := flag.Int("maxtime-ms", int(config.DefaultMaxTime.Milliseconds()), "pin/lock wait timeout in milliseconds")
	keyLen := flag.Int("keylen", 20, "declared length of the indexed string key")
	flag.Parse()

	cfg := config.LoadBufferMgrConfig(map[string]string{
		config.KeyBufferPoolSize: fmt.Sprintf("%d", *poolSize),
		config.KeyMaxTime:        fmt.Sprintf("%d", *maxTimeMS),
	})

	if err := run(*dbDir, *blockSize, *keyLen, cfg); err != nil {
		log.Fatalf("btreedemo: %v", err)
	}
}

func run(dbDir string, blockSize, keyLen int, cfg config.BufferMgrConfig) error {
	fm, err := file.NewFileManager(dbDir, blockSize)
	if err != nil {
		return fmt.Errorf("file manager: %w", err)
	}

	lm, err := dblog.NewLogManager(fm, logFile)
	if err != nil {
		return fmt.Errorf("log manager: %w", err)
	}

	pool := buffer.NewPool(fm, lm, cfg.PoolSize)
	lt := tx.NewLockTable()

	txn := tx.NewTransaction(fm, lm, pool, lt, cfg)

	idx, err := btree.NewIndex(txn, indexName, types.Varchar, keyLen)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	seed := []struct {
		key string
		rid types.RID
	}{
		{"apricot", types.NewRID(file.NewBlockID("data.tbl", 0), 0)},
		{"fig", types.NewRID(file.NewBlockID("data.tbl", 0), 1)},
		{"banana", types.NewRID(file.NewBlockID("data.tbl", 0), 2)},
		{"date", types.NewRID(file.NewBlockID("data.tbl", 1), 0)},
		{"cherry", types.NewRID(file.NewBlockID("data.tbl", 1), 1)},
	}

	for _, row := range seed {
		if err := idx.Insert(types.NewConstantString(row.key), row.rid); err != nil {
			return fmt.Errorf("insert %q: %w", row.key, err)
		}
	}

	scanRange := types.NewConstantRange(types.NewConstantString("banana"), types.NewConstantString("fig"))
	if err := idx.BeforeFirst(scanRange); err != nil {
		return fmt.Errorf("before first: %w", err)
	}
	for {
		ok, err := idx.Next()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if !ok {
			break
		}
		log.Printf("matched rid %s", idx.DataRID())
	}
	idx.Close()

	if err := idx.Delete(types.NewConstantString("date"), seed[3].rid); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return txn.Commit()
}
