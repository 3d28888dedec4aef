package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	clientDir := flag.String("client", "", "Path to client directory (default: ../client)")
	dbPath := flag.String("db", "arena.db", "SQLite database path (empty disables accounts and analytics)")
	envFile := flag.String("env", ".env", "Optional .env file with ARENA_* overrides")
	flag.Parse()

	if *clientDir == "" {
		exe, _ := os.Executable()
		*clientDir = filepath.Join(filepath.Dir(exe), "..", "client")
		// Fallback for development
		if _, err := os.Stat(*clientDir); os.IsNotExist(err) {
			*clientDir = "../client"
		}
	}

	cfg, err := LoadConfig(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		auth      *Auth
		listeners Listeners
		analytics *Analytics
	)
	if *dbPath != "" {
		db, err := OpenDB(*dbPath)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		if auth, err = NewAuth(db); err != nil {
			log.Fatalf("auth: %v", err)
		}
		analytics = NewAnalytics(db)
		listeners = append(listeners, analytics)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	arenas := NewArenaManager(ctx, cfg, listeners)
	hub := NewHub(arenas, auth)
	go hub.Run()

	server := &http.Server{Addr: *addr, Handler: SetupRoutes(hub, *clientDir)}

	go func() {
		log.Printf("Server starting on %s (arena %vx%v, %d viruses, %d ticks/s)",
			*addr, cfg.Width, cfg.Height, cfg.Virus.InitialCount, cfg.TickRate)
		log.Printf("Serving client files from %s, default arena %s", *clientDir, arenas.Default().ID)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	server.Shutdown(shutdownCtx)
	if analytics != nil {
		analytics.Stop()
	}
}
