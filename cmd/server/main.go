package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rcarmo/go-vc5/internal/codec"
	"github.com/rcarmo/go-vc5/internal/config"
	"github.com/rcarmo/go-vc5/internal/handler"
	"github.com/rcarmo/go-vc5/internal/logging"
)

const (
	appName    = "VC-5 Decode Server"
	appVersion = "v1.0.0"
)

type parsedArgs struct {
	host       string
	port       string
	logLevel   string
	configFile string
	codebook   string
	workers    int
}

func main() {
	args, action := parseFlags()
	switch action {
	case "help":
		showHelp()
		return
	case "version":
		showVersion()
		return
	}

	if err := run(args); err != nil {
		logging.Error("%v", err)
		os.Exit(1)
	}
}

func parseFlags() (parsedArgs, string) {
	return parseFlagsWithArgs(os.Args[1:])
}

func parseFlagsWithArgs(arguments []string) (parsedArgs, string) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	hostFlag := fs.String("host", "", "decode server host")
	portFlag := fs.String("port", "", "decode server port")
	logLevelFlag := fs.String("log-level", "", "log level (debug, info, warn, error)")
	configFlag := fs.String("config", "", "YAML configuration file")
	codebookFlag := fs.String("codebook", "", "YAML entropy codebook replacing the built-in table")
	workersFlag := fs.Int("workers", 0, "channels decoded in parallel per payload")
	helpFlag := fs.Bool("help", false, "show help")
	versionFlag := fs.Bool("version", false, "show version")

	if err := fs.Parse(arguments); err != nil {
		return parsedArgs{}, "help"
	}

	if *helpFlag {
		return parsedArgs{}, "help"
	}

	if *versionFlag {
		return parsedArgs{}, "version"
	}

	return parsedArgs{
		host:       strings.TrimSpace(*hostFlag),
		port:       strings.TrimSpace(*portFlag),
		logLevel:   strings.TrimSpace(*logLevelFlag),
		configFile: strings.TrimSpace(*configFlag),
		codebook:   strings.TrimSpace(*codebookFlag),
		workers:    *workersFlag,
	}, ""
}

func run(args parsedArgs) error {
	cfg, err := config.LoadWithOverrides(config.LoadOptions{
		Host:       args.host,
		Port:       args.port,
		LogLevel:   args.logLevel,
		ConfigFile: args.configFile,
		Workers:    args.workers,
		Codebook:   args.codebook,
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogging(cfg.Logging)

	server, err := createServer(cfg, log)
	if err != nil {
		return err
	}
	log.Info("starting server on %s:%s (TLS=%t, codecs=%v)", cfg.Server.Host, cfg.Server.Port, cfg.Security.EnableTLS, codec.Names())

	return startServer(server, cfg)
}

func createServer(cfg *config.Config, log *logging.Logger) (*http.Server, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	decoder, err := handler.NewDecoder(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("create decode handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /decode", decoder)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := applySecurityMiddleware(mux, cfg)
	h = requestLoggingMiddleware(h, log)

	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, nil
}

func applySecurityMiddleware(next http.Handler, cfg *config.Config) http.Handler {
	if cfg == nil {
		return securityHeadersMiddleware(corsMiddleware(next, nil))
	}

	return securityHeadersMiddleware(corsMiddleware(next, cfg.Security.AllowedOrigins))
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; connect-src 'self' ws: wss:")

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isOriginAllowed(origin, allowedOrigins, r.Host) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isOriginAllowed(origin string, allowedOrigins []string, host string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}

	if len(allowedOrigins) == 0 {
		return strings.Contains(origin, host)
	}

	return false
}

func setupLogging(cfg config.LoggingConfig) *logging.Logger {
	log := logging.Default()
	log.SetLevelFromString(cfg.Level)
	log.SetFormat(logging.ParseFormat(cfg.Format))
	return log
}

// statusRecorder captures the response code for the access log. Hijacked
// websocket connections report 101.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func requestLoggingMiddleware(next http.Handler, log *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if r.Header.Get("Upgrade") != "" {
			rec.status = http.StatusSwitchingProtocols
			next.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(rec, r)
		}
		log.Info("%s %s %s %d %s", r.RemoteAddr, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func startServer(server *http.Server, cfg *config.Config) error {
	if server == nil {
		return fmt.Errorf("server is nil")
	}

	var err error
	if cfg != nil && cfg.Security.EnableTLS {
		err = server.ListenAndServeTLS(cfg.Security.TLSCertFile, cfg.Security.TLSKeyFile)
	} else {
		err = server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func showHelp() {
	fmt.Println(appName)
	fmt.Println("USAGE: server [options]")
	fmt.Println("OPTIONS:")
	fmt.Println("  -host               Set server listen host (default 0.0.0.0)")
	fmt.Println("  -port               Set server listen port (default 8080)")
	fmt.Println("  -log-level          Set log level (debug, info, warn, error)")
	fmt.Println("  -config             Load a YAML configuration file")
	fmt.Println("  -codebook           Load a YAML entropy codebook")
	fmt.Println("  -workers            Channels decoded in parallel per payload")
	fmt.Println("  -version            Show version information")
	fmt.Println("  -help               Show this help message")
	fmt.Println("ENVIRONMENT VARIABLES: SERVER_HOST, SERVER_PORT, LOG_LEVEL, CONFIG_FILE, DECODER_WORKERS, DECODER_CODEBOOK, DECODER_MAX_PAYLOAD, DECODER_MAX_PIXELS, ALLOWED_ORIGINS")
	fmt.Println("EXAMPLES: server -host 0.0.0.0 -port 8080")
}

func showVersion() {
	fmt.Printf("%s %s\n", appName, appVersion)
	fmt.Println("Endpoint: GET /decode (websocket, one VC-5 payload per binary message)")
}
