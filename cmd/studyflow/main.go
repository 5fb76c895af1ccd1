package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/nhle/studyflow/internal/model"
)

var (
	app        = kingpin.New("studyflow", "Collect course deadlines from school email and Canvas into one task list")
	configPath = app.Flag("config", "Path to the config file").Default(model.DefaultConfigPath()).String()

	serveCmd = app.Command("serve", "Run the HTTP API and the scheduled sync poller")

	syncCmd  = app.Command("sync", "Run one sync for a user")
	syncUser = syncCmd.Flag("user", "User email").Required().String()

	userCmd      = app.Command("user", "Manage users")
	userAddCmd   = userCmd.Command("add", "Create a user and print a session token")
	userAddEmail = userAddCmd.Arg("email", "User email").Required().String()
	userListCmd  = userCmd.Command("list", "List users")

	tasksCmd  = app.Command("tasks", "Show accepted tasks")
	tasksUser = tasksCmd.Flag("user", "User email").Required().String()

	inboxCmd  = app.Command("inbox", "Review pending tasks one by one")
	inboxUser = inboxCmd.Flag("user", "User email").Required().String()

	gmailCmd        = app.Command("gmail", "Gmail mailbox commands")
	gmailConnectCmd = gmailCmd.Command("connect", "Authorize read-only Gmail access for a user")
	gmailUser       = gmailConnectCmd.Flag("user", "User email").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := newEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case serveCmd.FullCommand():
		err = runServe(ctx, e)
	case syncCmd.FullCommand():
		err = runSync(ctx, e, *syncUser)
	case userAddCmd.FullCommand():
		err = runUserAdd(ctx, e, *userAddEmail)
	case userListCmd.FullCommand():
		err = runUserList(ctx, e)
	case tasksCmd.FullCommand():
		err = runTasks(ctx, e, *tasksUser)
	case inboxCmd.FullCommand():
		err = runInbox(ctx, e, *inboxUser)
	case gmailConnectCmd.FullCommand():
		err = runGmailConnect(ctx, e, *gmailUser)
	}
	e.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
