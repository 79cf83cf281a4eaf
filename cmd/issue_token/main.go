// Command issue_token mints an operator token for the ticket routes.
//
//	JWT_SECRET=... go run ./cmd/issue_token -id T01
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/xelth-com/spectraq/internal/plant"
	"github.com/xelth-com/spectraq/internal/utils"
)

func main() {
	id := flag.String("id", "", "technician id from the plant roster")
	plantPath := flag.String("plant", "plant.yaml", "plant profile")
	ttl := flag.Duration("ttl", utils.DefaultOperatorTTL, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	p, err := plant.Load(*plantPath)
	if err != nil {
		log.Fatalf("Failed to load plant profile: %v", err)
	}
	tech, ok := p.Technician(*id)
	if !ok {
		log.Fatalf("Unknown technician %q", *id)
	}

	token, err := utils.GenerateOperatorToken(tech.ID, tech.Name, secret, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
