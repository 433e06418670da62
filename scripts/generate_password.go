//go:build ignore

// Prints a password hash for hand-written seed files.
//
//	go run scripts/generate_password.go <password>
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/generate_password.go <password>")
	}
	password := os.Args[1]

	passwords := auth.NewPasswordManager(&config.Config{
		Security: config.SecurityConfig{BcryptCost: 12},
	})

	hash, err := passwords.HashPassword(password)
	if err != nil {
		log.Fatal(err)
	}
	if err := passwords.VerifyPassword(password, hash); err != nil {
		log.Fatal("Hash verification failed: ", err)
	}

	fmt.Println(hash)
}
