package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"comexstat/internal/cache"
	"comexstat/internal/dashboard"
)

func main() {
	cfg, err := dashboard.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dataPath := flag.String("data", cfg.DataPath, "CSV dataset path")
	x := flag.String("x", cfg.X, "category column")
	columns := flag.String("columns", strings.Join(cfg.Columns, ","), "comma-separated selectable columns (empty = all but x)")
	def := flag.String("default", cfg.Default, "initially selected column")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	data, err := dashboard.LoadDataset(*dataPath, *x, splitColumns(*columns), *def)
	if err != nil {
		logger.Fatal("dataset", zap.String("path", *dataPath), zap.Error(err))
	}
	logger.Info("dataset loaded",
		zap.String("path", *dataPath),
		zap.Int("rows", data.Table.Len()),
		zap.Strings("columns", data.Columns),
	)

	charts, err := cache.New(1<<24 /* ~16MB */, cfg.CacheTTL)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	defer charts.Close()

	s := dashboard.NewServer(data, charts, cfg, logger)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: s.R}
	go func() {
		logger.Info("http listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http", zap.Error(err))
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	_ = server.Shutdown(ctxShut)
	logger.Info("shutdown complete")
}

func splitColumns(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
