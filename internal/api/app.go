package api

import (
	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/auth"
	"github.com/Toshin-unyu/Zimmeter/internal/service"
	"github.com/Toshin-unyu/Zimmeter/internal/storage"
)

type App interface {
	Logger() internal.Logger
	Store() storage.Store
	Sessions() *service.SessionManager
	Days() *service.DayTracker
	Identity() auth.Provider
}

type app struct {
	logger   internal.Logger
	store    storage.Store
	sessions *service.SessionManager
	days     *service.DayTracker
	identity auth.Provider
}

// NewApp wires the services over store. opts apply to every service.
func NewApp(logger internal.Logger, store storage.Store, opts ...service.Option) App {
	opts = append([]service.Option{service.WithLogger(logger)}, opts...)
	return &app{
		logger:   logger,
		store:    store,
		sessions: service.NewSessionManager(store, opts...),
		days:     service.NewDayTracker(store, opts...),
		identity: auth.NewLocalProvider(store, logger),
	}
}

func (a *app) Logger() internal.Logger           { return a.logger }
func (a *app) Store() storage.Store              { return a.store }
func (a *app) Sessions() *service.SessionManager { return a.sessions }
func (a *app) Days() *service.DayTracker         { return a.days }
func (a *app) Identity() auth.Provider           { return a.identity }
