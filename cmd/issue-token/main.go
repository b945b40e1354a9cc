// Command issue-token prints an access token for local testing against the wizard API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/middleware"
	"github.com/Alan934/taller-charli-sub000/pkg/jwt"
	"github.com/joho/godotenv"
)

func main() {
	userID := flag.String("user", "", "user id (required)")
	email := flag.String("email", "", "email claim")
	role := flag.String("role", "CLIENT", "CLIENT or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "taller-charli"
	}

	service := jwt.NewService(secret, issuer, *ttl)
	token, err := service.GenerateAccessToken(*userID, *email, string(middleware.ParseRole(*role)))
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
