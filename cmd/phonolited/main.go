// Command phonolited is the self-hosted music server: it builds and
// serves the library index, and streams Opus-transcoded audio to
// authenticated clients over QUIC. Adapted from the teacher's
// cmd/server/main.go (config load -> dependency construction ->
// background goroutine launch -> signal.Notify -> graceful shutdown),
// with the Postgres/HTTP stack replaced by the embedded KV index and
// QUIC streaming core this repo implements.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"phonolite/internal/capability"
	"phonolite/internal/config"
	"phonolite/internal/kv"
	"phonolite/internal/library/indexer"
	"phonolite/internal/library/reader"
	"phonolite/internal/quality"
	"phonolite/internal/quicconfig"
	"phonolite/internal/quicsession"
	"phonolite/internal/transcode"
	"phonolite/internal/watcher"
)

func main() {
	configPath := flag.String("config", "phonolite.yaml", "path to YAML configuration file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	db, err := kv.Open(cfg.IndexPath)
	if err != nil {
		log.Error("index open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ix := indexer.New(db, cfg.MusicRoot, log)

	if err := runHandshakeScan(context.Background(), db, ix, log); err != nil {
		log.Error("handshake scan failed", "error", err)
		os.Exit(1)
	}

	rdr := reader.New(db)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var background sync.WaitGroup
	if cfg.WatchMusic {
		background.Add(1)
		go func() {
			defer background.Done()
			debounce := time.Duration(cfg.WatchDebounceSecs) * time.Second
			err := watcher.Watch(ctx, cfg.MusicRoot, debounce, log, func(rescanCtx context.Context) {
				if _, err := ix.RunIncrementalScan(rescanCtx); err != nil {
					log.Error("incremental scan failed", "error", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("watcher stopped", "error", err)
			}
		}()
	}

	qualityMgr := quality.NewManager()
	defer qualityMgr.Close()

	tlsConf, err := quicconfig.Load(cfg.QUICCertPath, cfg.QUICKeyPath, cfg.QUICSelfSigned)
	if err != nil {
		log.Error("quic tls config failed", "error", err)
		os.Exit(1)
	}

	srv, err := quicsession.Listen(fmt.Sprintf(":%d", cfg.QUICPort), tlsConf, quicsession.Deps{
		Reader:     rdr,
		Auth:       capability.NewStaticAuth(nil),
		Quality:    qualityMgr,
		MusicRoot:  cfg.MusicRoot,
		OutputKind: transcode.OutputRawFramed,
		Log:        log,
	})
	if err != nil {
		log.Error("quic listen failed", "error", err)
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()
	log.Info("phonolited started", "quic_port", cfg.QUICPort, "music_root", cfg.MusicRoot)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error("quic server stopped", "error", err)
		}
	}

	if err := srv.Close(); err != nil {
		log.Warn("quic listener close failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Wait(shutdownCtx); err != nil {
		log.Warn("quic sessions did not drain before shutdown timeout", "error", err)
	}

	backgroundDone := make(chan struct{})
	go func() {
		background.Wait()
		close(backgroundDone)
	}()
	select {
	case <-backgroundDone:
	case <-shutdownCtx.Done():
		log.Warn("background goroutines did not exit before shutdown timeout")
	}
}

// runHandshakeScan implements spec.md §6's index-version handshake:
// read meta.version, and run a full scan before serving reads if it
// is absent or stale.
func runHandshakeScan(ctx context.Context, db *kv.DB, ix *indexer.Indexer, log *slog.Logger) error {
	current, found, err := readSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if found && current == kv.SchemaVersion {
		return nil
	}
	log.Info("index schema stale or absent, running full scan", "found_version", current, "current_version", kv.SchemaVersion)
	_, err = ix.RunFullScan(ctx)
	return err
}

func readSchemaVersion(db *kv.DB) (uint32, bool, error) {
	var version uint32
	found := false
	err := db.View(func(tx *kv.ReadTx) error {
		meta, err := tx.Table(string(kv.TableMeta))
		if err != nil {
			if errors.Is(err, kv.ErrTableNotExist) {
				return nil
			}
			return err
		}
		raw, ok := meta.Get([]byte(kv.MetaKeyVersion))
		if !ok {
			return nil
		}
		var v uint32
		if _, err := fmt.Sscanf(string(raw), "%d", &v); err != nil {
			return err
		}
		version = v
		found = true
		return nil
	})
	return version, found, err
}
