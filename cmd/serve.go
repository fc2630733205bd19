package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pydex/pydex/pkg/api"
	"github.com/pydex/pydex/pkg/config"
	"github.com/urfave/cli/v3"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the JSON API and the background index crawler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (overrides the config file)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// serve runs the API server and the periodic crawler until interrupted.
func serve(ctx context.Context, configPath, listenAddr string) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if listenAddr == "" {
		listenAddr = a.cfg.ListenAddr
	}

	crawlerCtx, crawlerCancel := context.WithCancel(ctx)
	defer crawlerCancel()
	a.crawler.Start(crawlerCtx)
	defer a.crawler.Stop()

	mux := http.NewServeMux()
	api.NewServer(a.model, a.cfg.PageSize).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    listenAddr,
		Handler: api.CorsMiddleware(mux),
	}

	go func() {
		log.Printf("Starting API server on %s", listenAddr)
		log.Printf("Available endpoints:")
		log.Printf("  GET /api/search - Search the local project index")
		log.Printf("  GET /api/projects/{name} - Project page (latest release)")
		log.Printf("  GET /api/projects/{name}/{version} - Project page for a release")
		log.Printf("  GET /api/stats - Index statistics")
		log.Printf("  GET /health - Health check")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Signal handling - includes SIGHUP for crawl-settings reload
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Set up filesystem watcher for config file
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Warning: failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				log.Printf("Warning: failed to close config file watcher: %v", err)
			}
		}()

		if err := watcher.Add(configPath); err != nil {
			log.Printf("Warning: failed to watch config file %s: %v", configPath, err)
		} else {
			log.Printf("Watching config file for changes: %s", configPath)
		}
	}

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				log.Println("Received SIGHUP, reloading crawl settings...")
				if err := reloadCrawlSettings(crawlerCtx, configPath, a); err != nil {
					log.Printf("Failed to reload crawl settings: %v", err)
				} else {
					log.Println("Crawl settings reloaded")
				}
			case syscall.SIGINT, syscall.SIGTERM:
				fmt.Println("\nShutting down...")
				crawlerCancel()
				a.crawler.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		case event, ok := <-watcher.Events:
			if !ok {
				continue
			}
			// Editors often replace files atomically, so react to rename and
			// remove as well as plain writes.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				log.Printf("Config file changed: %s (event: %s), reloading crawl settings...", event.Name, event.Op.String())

				if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					time.Sleep(200 * time.Millisecond)

					if _, err := os.Stat(configPath); os.IsNotExist(err) {
						log.Printf("Config file was removed and not replaced, skipping reload")
						continue
					}

					if err := watcher.Add(configPath); err != nil {
						log.Printf("Warning: failed to re-add config file to watcher: %v", err)
					}
				} else {
					time.Sleep(100 * time.Millisecond)
				}

				if err := reloadCrawlSettings(crawlerCtx, configPath, a); err != nil {
					log.Printf("Failed to reload crawl settings: %v", err)
				} else {
					log.Println("Crawl settings reloaded")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				continue
			}
			log.Printf("Config file watcher error: %v", err)
		}
	}
}

// reloadCrawlSettings re-reads the config file and restarts the crawler with
// the new schedule. Storage locations and the listen address require a full
// restart and are not reloaded.
func reloadCrawlSettings(ctx context.Context, configPath string, a *app) error {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading new config: %w", err)
	}

	a.crawler.Reconfigure(ctx, crawlerConfig(newCfg))
	a.cfg = newCfg
	return nil
}
