package main

import (
	"context"
	"log"
	"os"

	"meanrevbacktest/cmd"
	"meanrevbacktest/internal/config"
	"meanrevbacktest/internal/logger"

	"go.uber.org/zap"
)

func main() {
	zap.S().Infow("starting api", "commitHash", os.Getenv("commit_hash"))

	ctx := logger.NewContext(context.Background(), zap.S())
	apiHandler, err := cmd.InitializeDependencies(ctx, config.Defaults())
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(apiHandler)

	err = apiHandler.StartApi(3009)
	if err != nil {
		log.Fatal(err)
	}
}
