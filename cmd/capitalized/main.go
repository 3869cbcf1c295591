// Package main — консольный клиент инвестиционной платформы Capitalized.
//
// Каждая подкоманда соответствует экрану онбординга или каталога:
//
//	capitalized login -id user@example.com -password secret
//	capitalized status
//	capitalized serve
//
// Результат печатается в stdout в JSON вместе с экраном, на который
// направлен пользователь. Логи пишутся в stderr.
//
// @title           Capitalized client status API
// @version         1.0
// @description     Локальный статус-сервер клиента: состояние онбординга и действия входа.
//
// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT
//
// @host      localhost:8089
// @BasePath  /
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/capitalized/internal/app/client"
	"github.com/magabrotheeeer/capitalized/internal/config"
	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env необязателен
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		return 2
	}

	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stderr)
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := client.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize client", sl.Err(err))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close client", sl.Err(err))
		}
	}()

	app.Start(ctx)
	return dispatch(ctx, app, os.Args[1], os.Args[2:], os.Stdout, os.Stderr)
}

func usage(w *os.File) {
	fmt.Fprintln(w, "usage: capitalized <command> [flags]")
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.help)
	}
}
