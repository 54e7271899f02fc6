package main

import (
	"fmt"
	"path/filepath"

	"github.com/jrsteele09/go-medscan-client/account"
	"github.com/jrsteele09/go-medscan-client/apiclient"
	"github.com/jrsteele09/go-medscan-client/chat"
	"github.com/jrsteele09/go-medscan-client/doctors"
	"github.com/jrsteele09/go-medscan-client/internal/config"
	"github.com/jrsteele09/go-medscan-client/medicine"
	"github.com/jrsteele09/go-medscan-client/reports"
	"github.com/jrsteele09/go-medscan-client/sessions"
	"github.com/jrsteele09/go-medscan-client/sessions/filestore"
	"github.com/jrsteele09/go-medscan-client/sessions/sqlitestore"
	"github.com/rs/zerolog/log"
)

// app holds the services every command is built from.
type app struct {
	config   config.Config
	store    sessions.Store
	client   *apiclient.Client
	account  *account.Service
	medicine *medicine.Service
	reports  *reports.Service
	doctors  *doctors.Service
	chat     *chat.Service
	closers  []func() error
}

func newApp(c config.Config) (*app, error) {
	a := &app{config: c}

	store, closer, err := openStore(c)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	if a.client, err = apiclient.New(c.GetBaseURL(), store, apiclient.WithTimeout(c.GetRequestTimeout())); err != nil {
		return nil, err
	}
	if a.account, err = account.New(a.client); err != nil {
		return nil, err
	}
	if a.medicine, err = medicine.New(a.client); err != nil {
		return nil, err
	}
	if a.reports, err = reports.New(a.client); err != nil {
		return nil, err
	}
	if a.doctors, err = doctors.New(a.client); err != nil {
		return nil, err
	}
	if a.chat, err = chat.New(a.client); err != nil {
		return nil, err
	}
	return a, nil
}

func openStore(c config.Config) (sessions.Store, func() error, error) {
	folder := c.GetDataFolder()
	switch backend := c.GetSessionBackend(); backend {
	case config.SessionBackendFile:
		store, err := filestore.New(folder)
		return store, nil, err
	case config.SessionBackendSQLite:
		store, err := sqlitestore.New(filepath.Join(folder, "session.db"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

func (a *app) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			log.Err(err).Msg("Failed to close")
		}
	}
}
