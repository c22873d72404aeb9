package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mtconnect-go/agentcore/assets"
	"github.com/mtconnect-go/agentcore/buffer"
	"github.com/mtconnect-go/agentcore/config"
	"github.com/mtconnect-go/agentcore/filecache"
	"github.com/mtconnect-go/agentcore/logging"
	"github.com/mtconnect-go/agentcore/metrics"
	"github.com/mtconnect-go/agentcore/server"
)

func main() {
	configPath := flag.String("config", "agent.json", "path to the agent configuration file")
	devicesPath := flag.String("devices", "", "path to the device model JSON (empty boots with a placeholder device)")
	filesDir := flag.String("files", "", "directory of static files to serve (schemas, stylesheet, landing page)")
	flag.Parse()

	log := logging.New(os.Stderr, slog.LevelInfo)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading config", "error", err)
		os.Exit(1)
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		log.Error("invalid configuration", "problems", strings.Join(problems, "; "))
		os.Exit(1)
	}

	tree, err := loadDeviceTree(*devicesPath)
	if err != nil {
		log.Error("loading device model", "error", err)
		os.Exit(1)
	}

	buf := buffer.New(cfg.BufferSize, cfg.CheckpointFreq)
	assetStore := assets.NewStore(cfg.AssetBufferSize)
	metricsReg := metrics.New()

	files := filecache.New("index.html")
	files.SetMinCompressedSize(cfg.MinCompressedSize)
	dir := *filesDir
	if dir == "" {
		dir = cfg.FilesPath
	}
	if dir != "" {
		if err := files.LoadDir(dir, "/"); err != nil {
			log.Warn("loading static files directory", "dir", dir, "error", err)
		}
	}

	srv := server.New(cfg, buf, tree, assetStore, files, metricsReg)

	var tlsConfig *tls.Config
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			log.Error("loading TLS certificate", "error", err)
			os.Exit(1)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	} else if cfg.TLSOnly {
		log.Error("tlsOnly requires tlsCertificateChain and tlsCertificatePassword")
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.ServerIP, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("listen", "addr", addr, "error", err)
		os.Exit(1)
	}
	ln = server.NewTLSListener(ln, tlsConfig, cfg.TLSOnly)

	httpSrv := &http.Server{
		Handler: withLogContext(srv, log),
	}

	log.Info("agent listening", "addr", ln.Addr().String(), "sender", cfg.Sender, "schemaVersion", cfg.SchemaVersion)

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.Serve(ln) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error("serve error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("shutdown", "error", err)
	}
}

// withLogContext stashes os.Stderr as the per-request writer every
// handler's logging.FromContext call resolves to, the same
// context-carried-writer idiom the teacher uses for request-scoped
// logging. The log argument is not used.
func withLogContext(h http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithWriter(r.Context(), os.Stderr)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}
