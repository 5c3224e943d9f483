package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/crypto/acme/autocert"

	// for cookies
	"github.com/gorilla/securecookie"

	"formd/config"
	"formd/i/telegram"
	"formd/sink"
)

func New(cfg *config.Config) (*System, error) {
	if err := config.CheckConfig(cfg); err != nil {
		return nil, err
	}

	var cookies *securecookie.SecureCookie
	if cfg.Sec.HashKey != "" {
		var blockKey = []byte(cfg.Sec.BlockKey)
		if cfg.Meta.DevelopmentMode || len(blockKey) == 0 {
			blockKey = nil // not encrypted cookies
		}
		cookies = securecookie.New([]byte(cfg.Sec.HashKey), blockKey)
	}

	templates, err := loadTemplates(cfg.Meta, cfg.Meta.DevelopmentMode)
	if err != nil {
		return nil, err
	}

	sys := &System{
		cookies:   cookies,
		templates: templates,
		devmode:   cfg.Meta.DevelopmentMode,
		config:    *cfg,
		sink:      sink.New(cfg.Form.Output),
		Stats:     Stats{t1: time.Now()},
	}

	if err := sys.openStore(); err != nil {
		return nil, fmt.Errorf("counter store: %w", err)
	}

	if cfg.Form.Notify {
		bot, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.AdminChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		log.Println("telegram notifications on, chat:", cfg.Telegram.AdminChatID)
		sys.notify = func(text string) {
			go func() {
				if err := bot.Notify(text); err != nil {
					log.Println("error sending telegram message:", err)
				}
			}()
		}
	}

	go func(s *System) {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGUSR1, syscall.SIGUSR2)
		for sig := range sigchan {
			log.Println("got signal:", sig.String())
			switch sig {
			case syscall.SIGUSR1:
				log.Println("reloading config")
				if err := s.ReloadConfig(); err != nil {
					log.Println("error reloading config:", err)
				}
			case syscall.SIGUSR2:
				log.Println("reloading templates")
				if err := s.ReloadTemplates(); err != nil {
					log.Println("error reloading templates:", err)
				}
			}
		}
	}(sys)

	go sys.flushLoop()

	return sys, nil
}

func loadTemplates(meta config.MetaConfig, devmode bool) (map[string]*template.Template, error) {
	t1 := time.Now()
	partials, err := filepath.Glob(filepath.Join(meta.PathTemplates, "_partials", "*.html"))
	if err != nil {
		return nil, fmt.Errorf("couldn't enumerate partial templates")
	}
	if devmode {
		log.Printf("Found %d partial templates: %q", len(partials), partials)
	}
	pages, err := filepath.Glob(filepath.Join(meta.PathTemplates, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("couldn't enumerate templates")
	}
	var templates = map[string]*template.Template{}
	for _, page := range pages {
		name := filepath.Base(page)
		if devmode {
			log.Println("Parsing template:", name)
		}
		t, err := template.New(name).ParseFiles(append([]string{page}, partials...)...)
		if err != nil {
			return nil, fmt.Errorf("couldn't parse template %q: %v", name, err)
		}
		templates[name] = t
	}
	if devmode {
		log.Printf("Parsed %d templates in %s", len(templates), time.Since(t1))
	}
	return templates, nil
}

func (s *System) ReloadTemplates() error {
	templates, err := loadTemplates(s.config.Meta, s.devmode)
	if err != nil {
		return err
	}
	log.Printf("parsed %d templates", len(templates))
	s.templates = templates
	return nil
}

func (s *System) ReloadConfig() error {
	if s.config.ConfigFilePath == "" {
		return fmt.Errorf("can't reload config, was set using stdin")
	}
	f, err := os.Open(s.config.ConfigFilePath)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(&s.config); err != nil {
		return err
	}
	if err := config.CheckConfig(&s.config); err != nil {
		return err
	}
	log.Println("reloaded config from", s.config.ConfigFilePath)
	return nil
}

type System struct {
	Stats     Stats
	cookies   *securecookie.SecureCookie
	templates map[string]*template.Template
	devmode   bool
	config    config.Config
	sink      *sink.Sink
	store     counterStore
	notify    func(string) // nil when telegram notifications are off
}

func (s *System) Config() config.Config {
	return s.config
}

type Stats struct {
	Hits                uint64  `json:"hits"`
	Average             float64 `json:"hits-per-second,omitempty"`
	Uptime              float64 `json:"uptime,omitempty"`
	LifetimeHits        uint64  `json:"lifetime-hits"`
	LifetimeSubmissions uint64  `json:"lifetime-submissions"`
	Version             string  `json:"version,omitempty"`
	t1                  time.Time
}

// Serve runs the HTTP (and, when configured, TLS) listeners until an
// interrupt or terminate signal arrives, then shuts down gracefully and
// flushes the lifetime counters.
func (s *System) Serve(h http.Handler) error {
	srv := &http.Server{Addr: s.config.Meta.ListenAddr, Handler: h}

	switch {
	case s.config.Sec.SSLCert != "" && s.config.Sec.SSLKey != "" && s.config.Meta.ListenAddrTLS != "":
		go func() {
			log.Println("serving TLS:", s.config.Meta.ListenAddrTLS)
			tlssrv := &http.Server{Addr: s.config.Meta.ListenAddrTLS, Handler: h}
			if err := tlssrv.ListenAndServeTLS(s.config.Sec.SSLCert, s.config.Sec.SSLKey); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalln("tls listener:", err)
			}
		}()
	case len(s.config.Sec.AutocertHosts) != 0 && s.config.Meta.ListenAddrTLS != "":
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(s.config.Sec.AutocertHosts...),
			Cache:      autocert.DirCache(s.config.Sec.AutocertCache),
		}
		// plain listener answers ACME http-01 challenges
		srv.Handler = m.HTTPHandler(h)
		go func() {
			log.Println("serving TLS (autocert):", s.config.Meta.ListenAddrTLS)
			tlssrv := &http.Server{
				Addr:      s.config.Meta.ListenAddrTLS,
				Handler:   h,
				TLSConfig: m.TLSConfig(),
			}
			if err := tlssrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalln("autocert listener:", err)
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Println("serving HTTP:", s.config.Meta.ListenAddr)
	log.Println("View in browser:", s.config.Meta.SiteURL)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		s.Close()
		return err
	case sig := <-shutdown:
		log.Println("got signal:", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println("shutdown error:", err)
	}
	return s.Close()
}

// Close flushes counters and releases the store.
func (s *System) Close() error {
	if err := s.flushCounters(); err != nil {
		log.Println("error flushing counters:", err)
	}
	return s.store.close()
}
