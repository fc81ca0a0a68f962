package main

import (
	"flag"
	"fmt"
	"mingle-server/core"
	"mingle-server/handlers/api/profiles"
	"mingle-server/handlers/websocket"
	"mingle-server/stores"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(profileStore core.ProfileStore, engine *websocket.Engine) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	clientURL := os.Getenv("CLIENT_URL")
	corsOptions := cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "" {
				return false
			}
			if clientURL != "" && origin == clientURL {
				return true
			}

			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}

			switch parsed.Scheme {
			case "http", "https":
				switch parsed.Hostname() {
				case "localhost", "127.0.0.1", "[::1]":
					return true
				}
			}

			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	r.Use(cors.Handler(corsOptions))

	r.Route("/api/profiles/{profileID}/interests", func(r chi.Router) {
		r.Get("/", profiles.HandleGetInterests(profileStore))
		r.Put("/", profiles.HandleUpdateInterests(profileStore))
	})

	r.Get("/api/pairings", func(w http.ResponseWriter, r *http.Request) {
		pairings := engine.Pairings()

		sort.Slice(pairings, func(i, j int) bool {
			return pairings[i].ID < pairings[j].ID
		})

		pairingList := make([]struct {
			ID      string   `json:"id"`
			Members []string `json:"members"`
		}, 0, len(pairings))
		for _, p := range pairings {
			pairingList = append(pairingList, struct {
				ID      string   `json:"id"`
				Members []string `json:"members"`
			}{ID: p.ID, Members: p.Members})
		}

		render.JSON(w, r, pairingList)
	})

	return r
}

func waitForShutdown(ioo *socketio.Server) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	ioo.Close(nil)
	os.Exit(0)
}

func main() {
	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", ":3002", "Set the server listen address")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	profileStore := stores.GetStore()
	engine := websocket.NewEngine()

	r := setupRouter(profileStore, engine)
	ioo := websocket.SetupSocketIO(engine, profileStore)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddr, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo)
}
