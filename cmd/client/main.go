package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/cuesync/internal/buildinfo"
	"github.com/dmitrijs2005/cuesync/internal/client/cli"
	"github.com/dmitrijs2005/cuesync/internal/client/config"
)

func main() {

	log.Println(buildinfo.String())

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
