package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/fleetwarden/fleetwarden/cmd/warden-engine/app"
)

func main() {
	app.NewApp("warden-engine").Run()
}
