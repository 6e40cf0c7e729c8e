package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/studyport-backend/internal/app"
)

func main() {
	var email string
	var name string
	flag.StringVar(&email, "email", "", "email of the user the token is issued for")
	flag.StringVar(&name, "name", "", "display name used when the user is created")
	flag.Parse()

	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("-email is required")
		os.Exit(2)
	}

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	auth := application.Services.Auth
	user, err := auth.EnsureUser(ctx, email, name)
	if err != nil {
		fmt.Printf("ensure user %s: %v\n", email, err)
		os.Exit(1)
	}
	token, err := auth.IssueAccessToken(user.ID)
	if err != nil {
		fmt.Printf("issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("user_id=%s expires_in=%s\n%s\n", user.ID, auth.GetAccessTTL(), token)
}
