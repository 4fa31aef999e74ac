// Command devtoken signs an API token for an existing account after
// checking its password. It exists for local testing against the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/chachabrian/wheelster-backend/internal/config"
	"github.com/chachabrian/wheelster-backend/internal/database"
	"github.com/chachabrian/wheelster-backend/internal/repository"
	"github.com/chachabrian/wheelster-backend/pkg/utils"
)

func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", os.Getenv("DEVTOKEN_PASSWORD"), "account password (defaults to $DEVTOKEN_PASSWORD)")
	ttl := flag.Duration("ttl", utils.TokenTTL, "token lifetime")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := database.InitDB(cfg.DB, false)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := repository.NewUserStore(db).VerifyCredentials(ctx, *email, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	token, err := utils.GenerateToken(user, cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
