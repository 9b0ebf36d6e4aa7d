package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	BackendMemory   = "memory"
	BackendSqlite   = "sqlite"
	BackendPostgres = "postgres"
)

var ErrInvalidBackend = errors.New("invalid store backend")

type Application struct {
	Server   Server   `koanf:"server"`
	Store    Store    `koanf:"store"`
	Database Database `koanf:"db"`
	Redis    Redis    `koanf:"redis"`
	Tracing  Tracing  `koanf:"tracing"`
	// Seed fills an empty store with a few demo events on startup.
	Seed bool `koanf:"seed"`
}

type Server struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout"`
}

type Store struct {
	Backend    string `koanf:"backend"`
	SqlitePath string `koanf:"sqlitepath"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

// Redis enables publishing view invalidations when Addr is set.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

// Tracing exports spans over OTLP/HTTP when Endpoint is set.
type Tracing struct {
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"servicename"`
}

func Defaults() Application {
	return Application{
		Server: Server{
			Addr:            ":8181",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{
			Backend:    BackendMemory,
			SqlitePath: "eventboard.db",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "eventboard",
			Pass:   "",
			Name:   "eventboard",
			Schema: "eventboard",
		},
		Redis: Redis{
			Channel: "eventboard:revalidate",
		},
		Tracing: Tracing{
			ServiceName: "eventboard",
		},
	}
}

// Load layers the defaults, the YAML file at path (optional) and EVENTBOARD_* environment
// variables, in that order.
func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "EVENTBOARD_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "EVENTBOARD_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	if err := app.validate(); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (a Application) validate() error {
	switch a.Store.Backend {
	case BackendMemory, BackendSqlite, BackendPostgres:
		return nil
	default:
		return fmt.Errorf("%w: %q (expected %s, %s or %s)", ErrInvalidBackend, a.Store.Backend,
			BackendMemory, BackendSqlite, BackendPostgres)
	}
}
