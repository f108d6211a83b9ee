// Command devtoken mints a bearer token for local development and manual
// testing against a running server. It reads JWT_SECRET, JWT_ISSUER and
// JWT_TTL the same way the server does.
//
//	go run ./cmd/devtoken -user alice
//	go run ./cmd/devtoken -user root -admin
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tbourn/go-filemarket-backend/internal/config"
	"github.com/tbourn/go-filemarket-backend/internal/identity"
)

func main() {
	user := flag.String("user", "", "user id to put in the token subject")
	admin := flag.Bool("admin", false, "grant the admin role")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken -user <id> [-admin]")
		os.Exit(2)
	}

	tok, err := identity.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, nil).Issue(*user, *admin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
