package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mastercactapus/hkmacro/config"
	"github.com/mastercactapus/hkmacro/machine"
	"github.com/mastercactapus/hkmacro/machine/hkctl"
	"github.com/mastercactapus/hkmacro/spjs"
	"github.com/mastercactapus/hkmacro/storage"
)

// openMachine connects to the controller. It returns nil if no machine is
// configured.
func openMachine(cfg *config.Config, log *slog.Logger) (machine.Adapter, error) {
	m := cfg.Machine
	switch {
	case m.SPJS != "":
		log.Info("using spjs", "url", m.SPJS, "port", m.Port)
		return hkctl.NewSPJSAdapter(spjs.Dial(m.SPJS, log), m.Port, m.Baud, log), nil
	case m.Port != "":
		log.Info("using serial port", "port", m.Port, "baud", m.Baud)
		conn, err := hkctl.OpenSerial(m.Port, m.Baud, log)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return nil, nil
}

func serveCmd(e *env, args []string) error {
	addr := e.fs.String("addr", "", "Address to listen on. Overrides the config.")
	dir := e.fs.String("dir", "", "Data directory. Overrides the config.")
	noMachine := e.fs.Bool("no-machine", false, "Disable dispatch to the machine.")
	if err := e.parse(args); err != nil {
		return err
	}
	if *addr != "" {
		e.cfg.Listen = *addr
	}
	if *dir != "" {
		e.cfg.StorageRoot = *dir
	}
	log := e.log

	store, err := storage.New(e.cfg.StorageRoot, log.With("component", "storage"))
	if err != nil {
		return err
	}

	var adapter machine.Adapter
	if !*noMachine {
		adapter, err = openMachine(e.cfg, log.With("component", "machine"))
		if err != nil {
			log.Warn("machine unavailable, dispatch disabled", "err", err)
			adapter = nil
		}
	}
	var disp *machine.Dispatcher
	if adapter != nil {
		disp = machine.NewDispatcher(adapter, log.With("component", "dispatch"))
		defer disp.Close()
	}

	a := newAPI(e.cfg, store, disp, log)
	if src, ok := adapter.(interface{ State() <-chan machine.State }); ok {
		go a.forwardState(src.State())
	}

	srv := &http.Server{
		Addr: e.cfg.Listen,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "*")
			log.Debug("request", "method", req.Method, "path", req.URL.Path, "remote", req.RemoteAddr)
			a.ServeHTTP(w, req)
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", e.cfg.Listen, "storage", e.cfg.StorageRoot)
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
