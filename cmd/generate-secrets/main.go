package main

import (
	"fmt"
	"log"

	"github.com/Alan934/taller-charli-sub000/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the Taller Charli wizard")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, draftKey, err := utils.GenerateServiceSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("DRAFT_ENCRYPTION_KEY=%s\n", draftKey)
	fmt.Println()
	fmt.Println("JWT_SECRET must match the identity provider that signs access tokens.")
	fmt.Println("Changing DRAFT_ENCRYPTION_KEY makes existing drafts unreadable; they are discarded on next login.")
	fmt.Println("===========================================")
}
