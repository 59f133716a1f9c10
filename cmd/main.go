package main

import (
	"github.com/karakol/delivery/internal/app"
	"github.com/karakol/delivery/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
