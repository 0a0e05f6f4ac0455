package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/staywell/booking-funnel/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the booking service")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, err := utils.GenerateSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Print("Operator password (leave empty to skip): ")
	password, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	password = strings.TrimSpace(password)

	var passwordHash string
	if password != "" {
		passwordHash, err = utils.HashOperatorPassword(password)
		if err != nil {
			log.Fatalf("Failed to hash operator password: %v", err)
		}
	}

	fmt.Println()
	fmt.Println("✅ Secrets generated successfully!")
	fmt.Println()
	fmt.Println("Add these to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	if passwordHash != "" {
		fmt.Printf("OPERATOR_PASSWORD_HASH=%s\n", passwordHash)
	}
	fmt.Println()
	fmt.Println("⚠️  IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
