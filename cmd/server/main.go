package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/cuesync/internal/buildinfo"
	"github.com/dmitrijs2005/cuesync/internal/server"
	"github.com/dmitrijs2005/cuesync/internal/server/config"
)

func main() {

	log.Println(buildinfo.String())

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
