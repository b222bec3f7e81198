package main

import (
	"github.com/microshop/orders/internal/app"
	"github.com/microshop/orders/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
