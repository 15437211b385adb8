package main

import (
	"KikenQR/internal/repository"
	"KikenQR/pkg/logger"
)

func main() {
	logger.Init()
	defer logger.Sync()

	repository.RunGenerate()
}
