package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/csrf"
	"github.com/joho/godotenv"

	"formd/config"
	"formd/denylist"
	"formd/system"

	_ "net/http/pprof"
)

var Version = "0.1.0-dev"

var info = "formd tiny website daemon with a contact form sink"
var logo = "" +
	"   ____                   __\n  / __/__  ________ _  ___/ /   " + info + "\n" +
	" / _/ / _ \\/ __/  ' \\/ _  /\n/_/   \\___/_/ /_/_/_/\\_,_/\n\n"

const DefaultListenAddr = "127.0.0.1:8080"
const DefaultListenAddrTLS = "127.0.0.1:1443"

func main() {

	// defaults
	var (
		devmode     = false
		addr        = DefaultListenAddr
		configpath  = "config.json"
		sslCert     = ""
		sslKey      = ""
		sslAddr     = DefaultListenAddrTLS
		formOutput  = ""
		showVersion = false
	)

	// flags
	flag.StringVar(&addr, "addr", addr, "address to serve")
	flag.BoolVar(&devmode, "dev", devmode, "development mode (insecure)")
	flag.StringVar(&configpath, "conf", configpath, "path to config.json (use - for stdin)")
	flag.StringVar(&sslCert, "sslcert", sslCert, "path to ssl cert")
	flag.StringVar(&sslKey, "sslkey", sslKey, "path to ssl key")
	flag.StringVar(&sslAddr, "ssladdr", sslAddr, "listen TLS if cert and key exist")
	flag.StringVar(&formOutput, "out", formOutput, "path to the submission csv file")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	doConfigDump := flag.Bool("dumpconfig", false, "dump config and exit")
	flag.Parse()

	log.SetPrefix("[formd] ")
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	if os.Getenv("DEBUG") != "" {
		go func() {
			log.Println(http.ListenAndServe("localhost:6060", nil))
		}()
	}

	println(logo)
	println("formd", Version)
	if showVersion {
		os.Exit(0)
	}

	// read config file or stdin
	var cfg = new(config.Config)
	cfg.Meta.Version = "formd " + Version
	if configpath == "-" {
		dec := json.NewDecoder(os.Stdin)
		if err := dec.Decode(&cfg); err != nil {
			log.Fatalln("error decoding json config:", err)
		}
		log.Println("read config from stdin")
	} else {
		f, err := os.Open(configpath)
		if err != nil {
			log.Fatalln("error opening config file:", err)
		}
		dec := json.NewDecoder(f)
		if err := dec.Decode(&cfg); err != nil {
			f.Close()
			log.Fatalln("error decoding json config:", err)
		}
		f.Close()
		log.Println("read config from", configpath)
		cfg.ConfigFilePath = configpath
	}

	// override config with flags
	if devmode {
		cfg.Meta.DevelopmentMode = devmode
	}
	if cfg.Meta.DevelopmentMode {
		log.SetFlags(log.Lshortfile | log.LstdFlags)
	}
	if addr != DefaultListenAddr || cfg.Meta.ListenAddr == "" {
		cfg.Meta.ListenAddr = addr
	}
	if sslAddr != DefaultListenAddrTLS || cfg.Meta.ListenAddrTLS == "" {
		cfg.Meta.ListenAddrTLS = sslAddr
	}
	if sslCert != "" {
		cfg.Sec.SSLCert = sslCert
	}
	if sslKey != "" {
		cfg.Sec.SSLKey = sslKey
	}
	if formOutput != "" {
		cfg.Form.Output = formOutput
	}

	// check config, parse templates, open counter db
	s, err := system.New(cfg)
	if err != nil {
		log.Fatalln("boot error:", err)
	}

	if *doConfigDump {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent(" ", " ")
		if err := enc.Encode(s.Config()); err != nil {
			log.Fatalln(err)
		}
		return
	}

	var handler http.Handler = s.Router()
	if cfg.Sec.CSRFKey != "" {
		handler = csrf.Protect([]byte(cfg.Sec.CSRFKey),
			csrf.Secure(!cfg.Meta.DevelopmentMode),
			csrf.FieldName("_csrf"),
			csrf.CookieName(cfg.Sec.CookieName+"_csrf"))(handler)
	}

	// setup access lists
	var refreshRate time.Duration // none, no auto refresh
	if cfg.Meta.DevelopmentMode {
		log.Println("DEV MODE")
		refreshRate = time.Second * 10
	}
	dlist := denylist.New(cfg.Sec.Allowlist, cfg.Sec.Denylist, refreshRate)

	// Serve or die!
	if err := s.Serve(dlist.Protect(s.HitCounter(handler))); err != nil {
		log.Println(err)
	}
}
