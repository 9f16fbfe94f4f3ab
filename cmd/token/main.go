// Command token mints an access token for a known user. It needs
// JWT_PRIVATE_KEY_PATH and is meant for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"sos-bknd/internal/auth"
	"sos-bknd/internal/config"
	"sos-bknd/internal/models"

	"github.com/google/uuid"
)

func main() {
	sub := flag.String("sub", "", "user id")
	role := flag.String("role", models.RoleCitizen, "citizen | volunteer | admin")
	name := flag.String("name", "", "display name")
	ver := flag.Int("ver", 0, "token version")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	id, err := uuid.Parse(*sub)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -sub:", err)
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.JWTPrivateKeyPath == "" {
		fmt.Fprintln(os.Stderr, "JWT_PRIVATE_KEY_PATH is required to mint tokens")
		os.Exit(2)
	}
	mgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTIssuer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	token, exp, err := mgr.Issue(&models.User{ID: id, Role: *role, Name: *name, TokenVersion: *ver}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintln(os.Stderr, "expires", exp.Format(time.RFC3339))
}
