package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type MetaConfig struct {
	Version         string                 `json:"-"`
	ListenAddr      string                 `json:"listen"`
	ListenAddrTLS   string                 `json:"listentls"`
	SiteName        string                 `json:"sitename"`
	SiteURL         string                 `json:"siteurl"`
	DevelopmentMode bool                   `json:"devmode"`
	CopyrightName   string                 `json:"copyright-name"`
	TemplateData    map[string]interface{} `json:"templatedata"`
	LiveTemplate    bool                   `json:"livetemplate"`
	PathTemplates   string                 `json:"templatedir"`
	PathPublic      string                 `json:"publicdir"`
}

type Config struct {
	Meta           MetaConfig     `json:"Meta,omitempty"`
	Sec            SecurityConfig `json:"Security,omitempty"`
	Form           FormConfig     `json:"Form,omitempty"`
	Telegram       TelegramConfig `json:"Telegram,omitempty"`
	ConfigFilePath string         `json:"-"` // empty if stdin ($PWD used)
}

// FormConfig describes the submission sink and the post-submit redirect.
type FormConfig struct {
	Output   string `json:"output"`   // flat file receiving one row per submission
	Redirect string `json:"redirect"` // where a successful POST lands
	Notify   bool   `json:"notify"`   // forward submissions to the telegram admin chat
}

type TelegramConfig struct {
	Token       string `json:"token"`
	AdminChatID int64  `json:"adminChat"`
}

type SecurityConfig struct {
	HashKey     string `json:"hash-key"`  // signs the receipt cookie, cookie off when empty
	BlockKey    string `json:"block-key"` // encrypts the receipt cookie, plaintext when empty
	CSRFKey     string `json:"csrf-key"`  // CSRF protection off when empty
	CookieName  string `json:"cookie-name"`
	Allowlist   string `json:"allowlist"`
	Denylist    string `json:"denylist"`
	ServePublic bool   `json:"servepublic"` // Serve All Unhandled URL in ./public
	BoltDB      string `json:"database"`

	SSLCert       string   `json:"sslcert"`
	SSLKey        string   `json:"sslkey"`
	AutocertHosts []string `json:"autocert-domains"`
	AutocertCache string   `json:"autocert-cache"`
}

const (
	DefaultFormOutput   = "database.csv"
	DefaultFormRedirect = "/thankyou.html"
	DefaultCookieName   = "formd"
	DefaultBoltDB       = "counters.db"
)

func CheckConfig(config *Config) error {
	// minimal config needed
	if config.Meta.Version == "" {
		config.Meta.Version = "formd"
	}
	if config.Meta.PathPublic == "" {
		config.Meta.PathPublic = "./www/public"
	}
	if config.Meta.PathTemplates == "" {
		config.Meta.PathTemplates = "./www/templates"
	}
	if config.Form.Output == "" {
		config.Form.Output = DefaultFormOutput
	}
	if config.Form.Redirect == "" {
		config.Form.Redirect = DefaultFormRedirect
	}
	if config.Sec.CookieName == "" {
		config.Sec.CookieName = DefaultCookieName
	}
	if config.Sec.BoltDB == "" {
		config.Sec.BoltDB = DefaultBoltDB
	}
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	if config.ConfigFilePath != "" {
		dir, err = filepath.Abs(filepath.Dir(config.ConfigFilePath))
		if err != nil {
			return fmt.Errorf("error %v", err)
		}
		log.Println("ConfigFilePath Directory:", dir)
	} else {
		log.Println("Using current working directory:", dir)
	}

	if !filepath.IsAbs(config.Meta.PathPublic) {
		config.Meta.PathPublic, err = filepath.Abs(filepath.Join(dir, config.Meta.PathPublic))
		if err != nil {
			return err
		}
	}
	if !filepath.IsAbs(config.Meta.PathTemplates) {
		config.Meta.PathTemplates, err = filepath.Abs(filepath.Join(dir, config.Meta.PathTemplates))
		if err != nil {
			return err
		}
	}
	if !filepath.IsAbs(config.Form.Output) {
		config.Form.Output, err = filepath.Abs(filepath.Join(dir, config.Form.Output))
		if err != nil {
			return err
		}
	}
	for _, dirname := range []string{config.Meta.PathPublic, config.Meta.PathTemplates} {
		if s, err := os.Stat(dirname); err != nil || !s.IsDir() {
			if err != nil {
				return err
			}
			return fmt.Errorf("is not a dir: %v", dirname)
		}
	}

	if config.Meta.SiteURL == "" {
		return fmt.Errorf("config needs Meta.siteurl")
	}
	if config.Form.Notify && config.Telegram.Token == "" {
		return fmt.Errorf("config has Form.notify but no Telegram.token")
	}
	if len(config.Sec.AutocertHosts) != 0 && config.Sec.AutocertCache == "" {
		return fmt.Errorf("config has Security.autocert-domains but no Security.autocert-cache")
	}

	// override if $PORT or $SITEURL are used (heroku, etc?)
	if port := os.Getenv("PORT"); port != "" {
		log.Println("overriding flags and config file with $PORT", port)
		config.Meta.ListenAddr = ":" + port
	}
	if siteurl := os.Getenv("SITEURL"); siteurl != "" {
		log.Println("overriding flags and config file with $SITEURL", siteurl)
		config.Meta.SiteURL = siteurl
	}

	return nil
}
