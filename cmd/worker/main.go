package main

import (
	"log"

	"gw-fraud-scoring/internal/app"
)

func main() {
	app, err := app.NewWorkerApp()
	if err != nil {
		log.Fatalf("Ошибка создания воркера: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("Ошибка при работе воркера: %v", err)
	}
}
