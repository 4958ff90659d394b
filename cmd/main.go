package main

import (
	"log"

	_ "gw-fraud-scoring/docs"
	"gw-fraud-scoring/internal/app"
)

// @title           Fraud Scoring Gateway API
// @version         1.0
// @description     Оценка риска транзакций в реальном времени: правила, модель аномалий и идемпотентная запись решений

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
func main() {
	app, err := app.NewApp()
	if err != nil {
		log.Fatalf("Ошибка создания приложения: %v", err)
	}

	app.BuildTransactionLayer()
	app.BuildQueryLayer()
	app.BuildRuleLayer()
	app.BuildHealthLayer()

	if err := app.Run(); err != nil {
		log.Fatalf("Ошибка при работе приложения: %v", err)
	}
}
