package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/botanitours-map/internal/clusterbuild"
	"github.com/mohammed-shakir/botanitours-map/internal/clusters"
	"github.com/mohammed-shakir/botanitours-map/internal/core/config"
	"github.com/mohammed-shakir/botanitours-map/internal/logger"
	h3mapper "github.com/mohammed-shakir/botanitours-map/internal/mapper/h3"
	"github.com/mohammed-shakir/botanitours-map/internal/store/sqlitestore"
)

func main() {
	os.Exit(run())
}

func run() int {
	dbPath := flag.String("db", "botanitours.sqlite", "sqlite database with position_infos")
	outDir := flag.String("out", "data", "directory the cluster files are written to")
	clusterJSON := flag.String("clusters", config.DefaultClusters, "zoom to divisor mapping")
	resFlag := flag.String("res", "1000=3,100=5,10=7", "H3 resolution per divisor")
	defaultRes := flag.Int("default-res", 6, "H3 resolution for divisors missing from -res")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	zl := logger.Build(logger.Config{Level: "info", Console: true, Component: "cluster-build"}, os.Stderr)
	log := logger.NewSlog(&zl)

	mapping, err := clusters.Parse(*clusterJSON)
	if err != nil {
		log.Error("bad -clusters", "err", err)
		return 2
	}
	res, err := clusterbuild.ParseRes(*resFlag)
	if err != nil {
		log.Error("bad -res", "err", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	st, err := sqlitestore.Open(ctx, *dbPath, true)
	if err != nil {
		log.Error("open store", "err", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	pois, err := clusterbuild.LoadPOIs(ctx, st)
	if err != nil {
		log.Error("load POIs", "err", err)
		return 1
	}

	b := clusterbuild.New(h3mapper.New(), clusterbuild.Config{Res: res, DefaultRes: *defaultRes})
	files, err := b.Build(pois, mapping.Divisors())
	if err != nil {
		log.Error("build clusters", "err", err)
		return 1
	}
	if err := clusterbuild.Write(*outDir, files); err != nil {
		log.Error("write clusters", "err", err)
		return 1
	}
	log.Info("cluster files written", "dir", *outDir, "files", len(files), "pois", len(pois))
	return 0
}
