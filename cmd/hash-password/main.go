package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/troikatech/collections-agent/pkg/auth"
)

// hash-password prints the bcrypt hash to put in OPERATOR_PASSWORD_HASH.
// The password is read from the first argument or stdin.
func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("Failed to read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if len(password) < 8 {
		log.Fatalf("Password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(hash)
}
