// Command useradd seeds an account into the sessionkeeper database.
//
//	useradd -username alice -password-stdin < secret.txt
//
// Database settings come from the same JSON/env/flag layers as the server.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/services"
)

func main() {
	var username, password string
	var fromStdin bool

	fs := flag.NewFlagSet("useradd", flag.ExitOnError)
	fs.StringVar(&username, "username", "", "account name")
	fs.StringVar(&password, "password", "", "account password")
	fs.BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-username", "-password", "-password-stdin"}))

	if fromStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	cfg := config.LoadConfig()
	ctx := context.Background()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations error: %v", err)
	}

	r := services.NewUserRegistrar(dbx.NewSQLTransactor(db, nil), repos, nil, logging.NewNopLogger())
	u, err := r.Register(ctx, username, password)
	if err != nil {
		log.Fatalf("register: %v", err)
	}

	fmt.Printf("created user %s (%s)\n", u.UserName, u.ID)
}
