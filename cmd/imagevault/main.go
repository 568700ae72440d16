// Command imagevault runs the Image Vault web server and its maintenance
// tasks.
//
//	imagevault serve
//	imagevault migrate [up|status]
//	imagevault seed dev
package main

import (
	"context"
	"log"
	"os"

	"github.com/LeeRoiii/Image-Vault/internal/app"
)

func main() {
	ctx := context.Background()
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
