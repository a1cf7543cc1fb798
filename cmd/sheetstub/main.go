// Command sheetstub serves an in-memory student sheet for local play and demos.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/sheetdb/sheetdbtest"
)

func main() {
	addr := flag.String("addr", ":8082", "HTTP server address")
	seedPath := flag.String("seed", "", "optional JSON file with an array of student records")
	flag.Parse()

	l, err := logger.New(logger.Config{Level: "info", Environment: "development", ServiceName: "sheetstub"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	sheet := sheetdbtest.NewSheet()
	if *seedPath != "" {
		n, err := seed(sheet, *seedPath)
		if err != nil {
			l.Error("failed to seed sheet", err, zap.String("path", *seedPath))
			os.Exit(1)
		}
		l.Info("seeded sheet", zap.Int("rows", n))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/", sheet)

	server := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		l.Info("sheet stub starting", zap.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server failed", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	l.Info("shutting down sheet stub")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func seed(sheet *sheetdbtest.Sheet, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var recs []record.StudentRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	sheet.Seed(recs...)
	return len(recs), nil
}
