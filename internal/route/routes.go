package route

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"qrscanner/internal/handler"
	"qrscanner/internal/logger"
	"qrscanner/internal/middleware"
	"qrscanner/internal/repository"
	"qrscanner/internal/service/display"
)

// StaticDir holds the viewer pages.
var StaticDir = "static"

// Services are the dependencies of the HTTP surface. ScanRepo may be nil when
// scan history is disabled.
type Services struct {
	Surface      *display.Surface
	Stats        handler.StatsSource
	ScanRepo     repository.ScanRepository
	Sessions     *middleware.Sessions
	PasswordHash []byte
	StartedAt    time.Time
	Logger       *logger.Logger
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDir, filepath.Clean(path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving and API endpoints,
// and wraps the router with the authentication middleware.
func SetupRoutes(s Services) http.Handler {
	r := mux.NewRouter()

	// Static files
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDir))))

	// API endpoints
	r.HandleFunc("/api/view", handler.ViewWebsocketHandler(s.Surface, s.Logger)).Methods("GET")
	r.HandleFunc("/api/status", handler.StatusHandler(s.Stats, s.Surface, s.ScanRepo, s.StartedAt, s.Logger)).Methods("GET")
	r.HandleFunc("/api/scans", handler.GetScansHandler(s.ScanRepo, s.Logger)).Methods("GET")
	r.HandleFunc("/api/scans", handler.ClearScansHandler(s.ScanRepo, s.Logger)).Methods("DELETE")
	r.HandleFunc("/api/scans/{id}", handler.GetScanHandler(s.ScanRepo, s.Logger)).Methods("GET")

	// Log endpoints
	r.HandleFunc("/logs/{level}", handler.ShowLogsHandler(s.Logger)).Methods("GET")
	r.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(s.Logger)).Methods("POST")

	// Auth endpoints
	r.HandleFunc("/auth/login", handler.LoginHandler(s.PasswordHash, s.Sessions, s.Logger)).Methods("POST")
	r.HandleFunc("/auth/logout", handler.LogoutHandler(s.Sessions)).Methods("POST", "GET")

	// Automatic HTML handler mapping for example: /login -> /static/login.html
	r.PathPrefix("/").HandlerFunc(dynamicHTMLHandler).Methods("GET")

	return middleware.AuthMiddleware(s.Sessions)(r)
}
