package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/crmsync/internal/testhelpers"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var image string
	flag.StringVar(&image, "image", "postgres:16-alpine", "postgres image to run")
	flag.Parse()

	usage := `
Run a postgres testcontainer for the crmsync server and print the matching DB_* variables.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH] [-image IMAGE]

ENV_FILE_PATH: path to the .env file

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	ctx := context.Background()
	pc, err := testhelpers.RunPostgres(ctx, image)
	if err != nil {
		log.Fatalf("Failed to create test container: %v\n", err)
	}

	cfg := pc.Config
	fmt.Printf("DB_TYPE=%s\nDB_HOST=%s\nDB_PORT=%s\nDB_DATABASE=%s\nDB_USER=%s\nDB_PASSWORD=%s\n",
		cfg.DBType, cfg.DBHost, cfg.DBPort, cfg.DBDatabase, cfg.DBUser, cfg.DBPassword)

	sig := <-sigs
	log.Printf("\nReceived signal: %v, terminating test container...\n", sig)
	if err := pc.Container.Terminate(ctx); err != nil {
		log.Printf("Failed to terminate test container: %v\n", err)
	}
}
