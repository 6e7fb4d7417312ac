package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fieldTasks/internal/app"
	"fieldTasks/internal/config"
	"fieldTasks/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yml", "путь к файлу конфигурации")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "конфигурация:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg)
	if err := application.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "инициализация:", err)
		application.Close()
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("Сервер завершился с ошибкой", err)
		logger.Sync()
		os.Exit(1)
	}
}
