// Package main is the entry point for the LAN file-sharing daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/example/lanshare/internal/config"
	"github.com/example/lanshare/internal/daemon"
)

var (
	configFile = flag.String("config", "config.toml", "Configuration file path")
	testConfig = flag.Bool("test-config", false, "Test configuration and exit")
	version    = "0.1.0"
	startTime  = time.Now() // Process start time, logged once the daemon is running
)

// setupGlobalErrorHandling starts a goroutine that blocks until SIGABRT
// arrives. Its deferred recover writes a crash log only for a panic
// raised on that goroutine itself; panics on other goroutines are not
// caught by it.
func setupGlobalErrorHandling() {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				log.Printf("FATAL: recovered from panic: %v\n%s", r, stack)

				crashLog := fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405"))
				f, err := os.Create(crashLog)
				if err == nil {
					fmt.Fprintf(f, "Time: %s\n", time.Now().Format(time.RFC3339))
					fmt.Fprintf(f, "Version: %s\n", version)
					fmt.Fprintf(f, "Error: %v\n\nStack Trace:\n%s\n", r, stack)
					f.Close()
					log.Printf("Crash report written to %s", crashLog)
				}
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGABRT)
		<-sigChan
	}()
}

func main() {
	flag.Parse()

	setupGlobalErrorHandling()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *testConfig {
		fmt.Println("Configuration test successful")
		return
	}

	fmt.Printf("\n=================================\n")
	fmt.Printf("lanshare daemon v%s\n", version)
	fmt.Printf("=================================\n\n")
	fmt.Printf("discovery udp/%d  transfer tcp/%d  web/ws %d  max-concurrent %d\n",
		cfg.Network.DiscoveryPort, cfg.Network.TransferPort, cfg.Network.WebPort, cfg.Transfer.MaxConcurrent)

	d, err := daemon.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize daemon: %v", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Printf("error releasing daemon resources: %v", err)
		}
	}()

	runCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	var wg sync.WaitGroup
	runErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr <- d.Run(runCtx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	log.Printf("daemon running, started %s", startTime.Format(time.RFC3339))

	select {
	case sig := <-stop:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-runErr:
		if err != nil {
			log.Printf("daemon exited with error: %v", err)
			os.Exit(1)
		}
		return
	}

	log.Println("shutting down daemon...")
	shutdownCancel()

	wgDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgDone)
	}()

	select {
	case <-wgDone:
		if err := <-runErr; err != nil {
			log.Printf("daemon reported error during shutdown: %v", err)
		}
		log.Println("all components stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Println("timeout waiting for components to stop")
	}

	log.Println("daemon shutdown complete")
}
