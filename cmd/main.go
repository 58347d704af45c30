package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/freightdesk/rulelearn-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		a.Close()
		os.Exit(0)
	}()

	a.Log.Info("Starting server", "port", a.Cfg.Port)
	if err := a.Run(); err != nil {
		a.Log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}
